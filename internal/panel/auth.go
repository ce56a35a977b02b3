package panel

import (
	"context"
	"fmt"
	"strings"
)

// Credential names a secret a panel model may require.
type Credential string

const (
	CredentialPassword      Credential = "password"
	CredentialInstallerCode Credential = "installer_code"
	CredentialUserCode      Credential = "user_code"
)

type Credentials struct {
	Password      string
	InstallerCode string
	UserCode      string
}

func (c Credentials) value(cred Credential) string {
	switch cred {
	case CredentialPassword:
		return c.Password
	case CredentialInstallerCode:
		return c.InstallerCode
	case CredentialUserCode:
		return c.UserCode
	}
	return ""
}

// RequiredCredentials returns what the panel family of model authenticates
// with. Solution panels take a user code, AMAX panels an installer code plus
// the automation passcode, and B/G series (and anything unrecognised) the
// automation passcode alone.
func RequiredCredentials(model string) []Credential {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case strings.HasPrefix(m, "solution"):
		return []Credential{CredentialUserCode}
	case strings.HasPrefix(m, "amax"):
		return []Credential{CredentialInstallerCode, CredentialPassword}
	default:
		return []Credential{CredentialPassword}
	}
}

// Check returns ErrMissingCredentials naming every credential model needs
// that c lacks.
func (c Credentials) Check(model string) error {
	var missing []string
	for _, cred := range RequiredCredentials(model) {
		if c.value(cred) == "" {
			missing = append(missing, string(cred))
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w for %q: %s", ErrMissingCredentials, model, strings.Join(missing, ", "))
	}
	return nil
}

type ProbeResult struct {
	Model        string
	SerialNumber string
	Firmware     string
	Required     []Credential
}

// Probe connects with LoadBasicInfo to learn which panel is behind client,
// then disconnects whatever the outcome.
func Probe(ctx context.Context, client Client) (res ProbeResult, err error) {
	defer func() {
		if derr := client.Disconnect(ctx); derr != nil && err == nil {
			err = Classify(derr)
		}
	}()

	if err := client.Connect(ctx, LoadBasicInfo); err != nil {
		return ProbeResult{}, Classify(err)
	}

	model := client.Model()
	return ProbeResult{
		Model:        model,
		SerialNumber: client.SerialNumber(),
		Firmware:     client.FirmwareVersion(),
		Required:     RequiredCredentials(model),
	}, nil
}
