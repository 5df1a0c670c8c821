package extractor

import (
	"fmt"
	"os"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// plainPDF returns a path the text reader can open. Encrypted input is
// decrypted into a temporary file even without a password, since owner-only
// encryption still scrambles the content streams. The returned cleanup removes
// the temporary file.
func plainPDF(path, password string) (string, func(), error) {
	encrypted, err := isEncrypted(path, password)
	if err != nil {
		return "", nil, err
	}
	if !encrypted {
		return path, func() {}, nil
	}
	return decryptToTemp(path, password)
}

func isEncrypted(path, password string) (bool, error) {
	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	ctx, err := api.ReadContext(f, passwordConfig(password))
	if err != nil {
		return false, fmt.Errorf("failed to read pdf: %w", err)
	}
	return ctx.Encrypt != nil, nil
}

// decryptToTemp writes a decrypted copy of path to a temporary file.
func decryptToTemp(path, password string) (string, func(), error) {
	tmp, err := os.CreateTemp("", "nota-*.pdf")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	name := tmp.Name()
	tmp.Close()
	cleanup := func() { os.Remove(name) }

	if err := api.DecryptFile(path, name, passwordConfig(password)); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("failed to decrypt pdf: %w", err)
	}
	return name, cleanup, nil
}

func passwordConfig(password string) *model.Configuration {
	conf := model.NewDefaultConfiguration()
	conf.UserPW = password
	conf.OwnerPW = password
	return conf
}
