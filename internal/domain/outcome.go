package domain

// Channel identifies an outreach channel.
type Channel string

const (
	ChannelPhone Channel = "phone"
	ChannelEmail Channel = "email"
)

// ChannelOutcome is the terminal result of one channel attempt as fed to
// result aggregation.
type ChannelOutcome struct {
	Channel        Channel
	Result         Result
	Expired        bool
	AttestationUID string
}
