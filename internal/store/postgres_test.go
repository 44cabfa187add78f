package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmailMD5(t *testing.T) {
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", EmailMD5("hello"))
	assert.NotEqual(t, EmailMD5("a@b.com"), EmailMD5("A@B.com"), "caller is responsible for lowercasing before hashing")
	assert.Equal(t, EmailMD5("a@b.com"), EmailMD5("a@b.com"))
}
