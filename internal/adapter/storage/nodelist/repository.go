package nodelist

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"rpc-scanner/internal/config"
	"rpc-scanner/internal/domain"
	"rpc-scanner/internal/domain/entity"
	domainRepo "rpc-scanner/internal/domain/repository"
	"rpc-scanner/internal/pkg/apperrors"
)

// Compile-time check
var _ domainRepo.NodeRepository = (*Repository)(nil)

// StdinSource selects standard input as the node list.
const StdinSource = "-"

// Repository implements NodeRepository over a node list file, stdin, or a list published at an http(s) URL.
type Repository struct {
	source string
	stdin  io.Reader
	client *fasthttp.Client
	logger *zap.Logger
}

// NewRepository creates a node list repository for cfg.File.
func NewRepository(cfg config.NodesConfig, logger *zap.Logger) *Repository {
	return &Repository{
		source: strings.TrimSpace(cfg.File),
		stdin:  os.Stdin,
		client: &fasthttp.Client{},
		logger: logger.Named("NodeListStorage"),
	}
}

// WithStdin replaces the reader used for the "-" source.
func (r *Repository) WithStdin(stdin io.Reader) *Repository {
	r.stdin = stdin
	return r
}

// ListEndpoints reads and parses the node list.
func (r *Repository) ListEndpoints(ctx context.Context) ([]entity.Endpoint, error) {
	var (
		body []byte
		err  error
	)

	switch {
	case r.source == "":
		return nil, fmt.Errorf("%w: no node list configured", apperrors.ErrInvalidInput)
	case r.source == StdinSource:
		body, err = io.ReadAll(r.stdin)
	case isRemote(r.source):
		body, err = r.fetch(ctx)
	default:
		body, err = os.ReadFile(r.source)
	}
	if err != nil {
		r.logger.Error("Failed to read node list", zap.String("source", r.source), zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrNodeListUnavailable, r.source, err)
	}

	endpoints, err := Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.source, err)
	}
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("%w in %s", domain.ErrNoEndpoints, r.source)
	}

	r.logger.Debug("Loaded node list", zap.String("source", r.source), zap.Int("count", len(endpoints)))
	return endpoints, nil
}

// fetch downloads a remote node list.
func (r *Repository) fetch(ctx context.Context) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(r.source)
	req.Header.SetMethod(fasthttp.MethodGet)

	timeout := 15 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until > 0 && until < timeout {
			timeout = until
		}
	}

	r.logger.Debug("Fetching node list", zap.String("url", r.source), zap.Duration("timeout", timeout))

	if err := r.client.DoTimeout(req, resp, timeout); err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrExternalServiceFailure, err)
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("%w: node list returned http status %d",
			apperrors.ErrExternalServiceFailure, resp.StatusCode(),
		)
	}

	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}

// Parse reads one endpoint URL per line. Blank lines and lines starting with "#" are skipped,
// as is anything after " #" on a line. Any other line must be an http(s) URL.
func Parse(r io.Reader) ([]entity.Endpoint, error) {
	var endpoints []entity.Endpoint

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if i := strings.Index(line, " #"); i >= 0 {
			line = strings.TrimSpace(line[:i])
		}

		endpoint, err := entity.NewEndpoint(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		endpoints = append(endpoints, endpoint)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNodeListUnavailable, err)
	}
	return endpoints, nil
}

func isRemote(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
