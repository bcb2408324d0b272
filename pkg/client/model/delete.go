package model

import (
	"fmt"
	"net/http"
	"time"

	"github.com/avast/retry-go"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/taxifare/fareops/internal/common/platformerrors"
	"github.com/taxifare/fareops/pkg/client"
)

// Deleted versions can remain visible for a while; deletion is only reported once a
// read of the version returns not found.
var (
	deletionAttempts uint = 10
	deletionDelay         = 3 * time.Second
)

var errStillPresent = errors.New("model version still present")

// DeleteAPI deletes a model version and waits until it is gone.
type DeleteAPI func(scope client.Scope, name, version string) error

func Delete(getConnectionDetails client.ConnectionDetails) DeleteAPI {
	return func(scope client.Scope, name, version string) error {
		conn, err := client.CreateApiConnection(getConnectionDetails())
		if err != nil {
			return fmt.Errorf("failed to connect to api because %w", err)
		}
		ctx, cancel := conn.OperationTimeout()
		defer cancel()

		versionUrl, err := conn.ScopeUrl(scope, "models", name, "versions", version)
		if err != nil {
			return err
		}
		resp, err := conn.Do(ctx, http.MethodDelete, versionUrl, nil, nil, resourceType, name+":"+version)
		if err != nil {
			return err
		}
		if err := conn.WaitForOperation(ctx, resp, fmt.Sprintf("deletion of model %s:%s", name, version)); err != nil {
			return err
		}

		err = retry.Do(
			func() error {
				_, err := conn.Do(ctx, http.MethodGet, versionUrl, nil, nil, resourceType, name+":"+version)
				if platformerrors.IsNotFound(err) {
					return nil
				}
				if err != nil {
					return err
				}
				return errStillPresent
			},
			retry.Context(ctx),
			retry.Attempts(deletionAttempts),
			retry.Delay(deletionDelay),
			retry.DelayType(retry.FixedDelay),
			retry.LastErrorOnly(true),
			retry.OnRetry(func(n uint, err error) {
				log.Debugf("waiting for model %s:%s to disappear (attempt %d): %s", name, version, n+1, err)
			}),
		)
		if err != nil {
			return errors.Wrapf(err, "model %s:%s was not removed from %s", name, version, scope)
		}
		return nil
	}
}
