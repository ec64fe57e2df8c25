package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"sweeper/internal/config"
	"sweeper/internal/immich"
	"sweeper/internal/services"
)

const immichCheckTimeout = 5 * time.Second

// CheckImmich verifies that the server answers ping and accepts the API key.
func CheckImmich(ctx context.Context, baseURL, apiKey string, opts ...immich.Option) Result {
	const name = "Immich"

	if strings.TrimSpace(baseURL) == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	if strings.TrimSpace(apiKey) == "" {
		return Result{Name: name, Detail: "missing api key"}
	}
	client, err := immich.New(baseURL, apiKey, opts...)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid connection (%v)", err)}
	}

	checkCtx, cancel := context.WithTimeout(ctx, immichCheckTimeout)
	defer cancel()

	if err := client.ValidateCredentials(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeImmichError(err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (reachable)", client.BaseURL())}
}

// CheckImmichFromConfig evaluates Immich status from config and connectivity.
func CheckImmichFromConfig(ctx context.Context, cfg *config.Config) Result {
	const name = "Immich"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if !cfg.IsConfigured() {
		return Result{Name: name, Detail: "Not configured"}
	}
	return CheckImmich(ctx, cfg.Immich.URL, cfg.Immich.APIKey)
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "path not set"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func summarizeImmichError(err error) string {
	var statusErr *immich.StatusError
	switch {
	case errors.Is(err, services.ErrConfiguration) && errors.As(err, &statusErr):
		return fmt.Sprintf("auth failed (%d, check the api key)", statusErr.StatusCode)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, services.ErrTimeout):
		return "check timed out (server unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "check timed out (server unreachable)"
	}
	if errors.As(err, &statusErr) {
		return fmt.Sprintf("check failed (%d)", statusErr.StatusCode)
	}
	return err.Error()
}
