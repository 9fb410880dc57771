package keytool

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/keyforge/keyforge/forge/dname"

	"github.com/keyforge/keyforge/logging"
)

const ownerMarker = "Owner:"

// ReadIdentity lists the keystore entry verbosely and parses the
// subject out of the first "Owner:" line. A listing without such a
// line yields [dname.ErrNoIdentity]; callers are expected to degrade
// to an empty identity rather than fail, since a certificate without
// recoverable subject metadata is still usable.
func (t *Tool) ReadIdentity(ctx context.Context, keystorePath, alias, password string) (dname.Identity, error) {
	out, err := t.runner.Run(ctx, t.opts.Path,
		"-list",
		"-v",
		"-keystore", keystorePath,
		"-storepass", password,
		"-alias", alias,
	)
	if err != nil {
		return dname.Identity{}, fmt.Errorf("keytool: listing keystore '%s': %w", keystorePath, err)
	}

	owner, found := scanOwner(out)
	if !found {
		logging.Infof("no owner line in listing of '%s'", keystorePath)
		return dname.Identity{}, dname.ErrNoIdentity
	}

	return dname.Decode(owner)
}

// scanOwner returns everything after the marker on the first line
// starting with "Owner:".
func scanOwner(listing []byte) (string, bool) {
	scanner := bufio.NewScanner(bytes.NewReader(listing))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, ownerMarker) {
			return strings.TrimSpace(line[len(ownerMarker):]), true
		}
	}
	return "", false
}
