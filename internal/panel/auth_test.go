package panel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequiredCredentials(t *testing.T) {
	tests := []struct {
		model string
		want  []Credential
	}{
		{"Solution 3000", []Credential{CredentialUserCode}},
		{"AMAX 3000", []Credential{CredentialInstallerCode, CredentialPassword}},
		{"B5512 (US1B)", []Credential{CredentialPassword}},
		{"", []Credential{CredentialPassword}},
	}
	for _, tt := range tests {
		t.Run(tt.model, func(t *testing.T) {
			assert.Equal(t, tt.want, RequiredCredentials(tt.model))
		})
	}
}

func TestCredentials_Check(t *testing.T) {
	assert.NoError(t, Credentials{UserCode: "1234"}.Check("Solution 2000"))
	assert.NoError(t, Credentials{InstallerCode: "1234", Password: "1234567890"}.Check("AMAX 4000"))

	err := Credentials{Password: "1234567890"}.Check("AMAX 3000")
	require.ErrorIs(t, err, ErrMissingCredentials)
	assert.Contains(t, err.Error(), "installer_code")
	assert.NotContains(t, err.Error(), "password")

	err = Credentials{}.Check("B6512")
	require.ErrorIs(t, err, ErrMissingCredentials)
	assert.Contains(t, err.Error(), "password")
}
