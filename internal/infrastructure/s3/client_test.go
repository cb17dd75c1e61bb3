package s3infra

import (
	"encoding/base64"
	"testing"

	"github.com/go-employment-verify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/pdf", ContentType("resumes/u1/CV.PDF"))
	assert.Equal(t, "image/jpeg", ContentType("paystub.jpeg"))
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", ContentType("cv.docx"))
	assert.Equal(t, "application/octet-stream", ContentType("archive"))
}

func TestDecodeBase64(t *testing.T) {
	raw := []byte("%PDF-1.4 resume")
	enc := base64.StdEncoding.EncodeToString(raw)

	got, err := DecodeBase64(enc)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	got, err = DecodeBase64("data:application/pdf;base64," + enc)
	require.NoError(t, err)
	assert.Equal(t, raw, got)

	_, err = DecodeBase64("%%%")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}
