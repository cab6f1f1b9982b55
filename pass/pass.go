// Package pass stores secrets in password-store(1) by shelling out to the
// pass executable. Entries live at <prefix>/<service>/<account> with both
// name halves escaped, and values are base64 encoded so arbitrary bytes
// survive the text format. A missing pass binary surfaces as
// ErrBackendUnavailable on every call. Writers race at the granularity of
// the underlying gpg files, last writer wins.
package pass

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/exec"
	"path"
	"strings"

	"github.com/libopenstorage/keychain"
)

const (
	Name = keychain.TypePass
	// PassPathPrefix is the secretConfig entry (or environment variable)
	// holding the password-store folder entries are kept under.
	PassPathPrefix = "KEYCHAIN_PASS_PREFIX"

	defaultPathPrefix = "keychain"

	// Diagnostic printed by pass for show and rm on an absent entry.
	notInStoreMarker = "is not in the password store"
)

type runFunc func(ctx context.Context, input string, args ...string) (stdout string, stderr string, err error)

type passBackend struct {
	pathPrefix string
	run        runFunc
}

// New returns a backend persisting through the pass executable. The binary
// is looked up lazily, a host without it fails per call rather than at
// construction.
func New(
	secretConfig map[string]interface{},
) (keychain.Backend, error) {
	pathPrefix := getPassParam(secretConfig, PassPathPrefix)
	if pathPrefix == "" {
		pathPrefix = defaultPathPrefix
	}
	return &passBackend{
		pathPrefix: pathPrefix,
		run:        runPassCommand,
	}, nil
}

func (p *passBackend) String() string {
	return Name
}

func (p *passBackend) Find(ctx context.Context, key keychain.SecretKey) (*keychain.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	stdout, stderr, err := p.run(ctx, "", "show", p.entryName(key))
	if err != nil {
		return nil, convertPassErr(err, stderr)
	}

	stdout = strings.TrimSuffix(stdout, "\n")
	stdout = strings.TrimSuffix(stdout, "\r")

	// An entry that does not decode, such as one written by hand, is a
	// record without a usable payload.
	entry := &keychain.Entry{Key: key}
	if value, decodeErr := base64.StdEncoding.DecodeString(stdout); decodeErr == nil {
		entry.Value = value
	}
	return entry, nil
}

func (p *passBackend) Insert(ctx context.Context, key keychain.SecretKey, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, stderr, err := p.run(ctx, "", "show", p.entryName(key))
	if err == nil {
		return keychain.ErrEntryExists
	}
	if converted := convertPassErr(err, stderr); !errors.Is(converted, keychain.ErrEntryNotFound) {
		return converted
	}
	return p.set(ctx, key, value)
}

func (p *passBackend) Update(ctx context.Context, key keychain.SecretKey, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, stderr, err := p.run(ctx, "", "show", p.entryName(key)); err != nil {
		return convertPassErr(err, stderr)
	}
	return p.set(ctx, key, value)
}

func (p *passBackend) Delete(ctx context.Context, key keychain.SecretKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, stderr, err := p.run(ctx, "", "rm", "-f", p.entryName(key))
	if err != nil {
		return convertPassErr(err, stderr)
	}
	return nil
}

func (p *passBackend) set(ctx context.Context, key keychain.SecretKey, value []byte) error {
	encoded := base64.StdEncoding.EncodeToString(value)
	_, stderr, err := p.run(ctx, encoded+"\n", "insert", "-m", "-f", p.entryName(key))
	if err != nil {
		return convertPassErr(err, stderr)
	}
	return nil
}

func (p *passBackend) entryName(key keychain.SecretKey) string {
	return path.Join(p.pathPrefix, escape(key.Service), escape(key.Account))
}

// escape makes a key component safe to use as a store path element. The
// bare marker for the empty component cannot collide, QueryEscape always
// hex-encodes the percent sign.
func escape(component string) string {
	if component == "" {
		return "%"
	}
	return url.QueryEscape(component)
}

func convertPassErr(err error, stderr string) error {
	switch {
	case strings.Contains(stderr, notInStoreMarker):
		return keychain.ErrEntryNotFound
	case errors.Is(err, keychain.ErrBackendUnavailable):
		return err
	case stderr != "":
		return fmt.Errorf("%w: %s", err, stderr)
	default:
		return err
	}
}

func runPassCommand(ctx context.Context, input string, args ...string) (string, string, error) {
	binary, err := exec.LookPath("pass")
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return "", "", fmt.Errorf("%w: pass executable not found", keychain.ErrBackendUnavailable)
		}
		return "", "", err
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	if input != "" {
		cmd.Stdin = strings.NewReader(input)
	}

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()
	return stdout.String(), strings.TrimSpace(stderr.String()), err
}

func getPassParam(secretConfig map[string]interface{}, name string) string {
	if valueIntf, exists := secretConfig[name]; exists {
		if value, ok := valueIntf.(string); ok {
			return value
		}
	}
	return os.Getenv(name)
}

func init() {
	if err := keychain.Register(Name, New); err != nil {
		panic(err.Error())
	}
}
