package mcpserver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"manimate/internal/batch"
	"manimate/internal/discovery"
	"manimate/internal/logging"
)

// Version is reported to MCP clients.
const Version = "0.1.0"

// Batch runs pending scripts or a single one. *batch.Orchestrator satisfies it.
type Batch interface {
	Run(ctx context.Context) (batch.Summary, error)
	RenderOne(ctx context.Context, path string, commit bool) (batch.JobResult, error)
}

// Ports are the manimate components the tools operate on.
type Ports struct {
	WorkDir     string
	Extension   string
	LogDir      string
	CombinedLog string
	Ledger      discovery.DoneSet
	Batch       Batch
	Now         func() time.Time
	Logger      *slog.Logger
}

// Validate checks that the required ports are present.
func (p *Ports) Validate() error {
	if p == nil {
		return errors.New("ports required")
	}
	if p.WorkDir == "" || p.LogDir == "" {
		return errors.New("work dir and log dir required")
	}
	if p.Ledger == nil || p.Batch == nil {
		return errors.New("ledger and batch required")
	}
	return nil
}

// Server exposes script management and rendering as MCP tools.
type Server struct {
	ports  *Ports
	server *mcp.Server
	logger *slog.Logger
}

// New builds a server with every tool registered.
func New(ports *Ports) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, err
	}
	if ports.Now == nil {
		ports.Now = time.Now
	}
	s := &Server{
		ports:  ports,
		server: mcp.NewServer(&mcp.Implementation{Name: "manimate", Version: Version}, nil),
		logger: logging.NewComponentLogger(ports.Logger, "mcp"),
	}
	s.registerTools()
	return s, nil
}

// Run serves over stdio until ctx is cancelled or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("mcp server started",
		logging.String(logging.FieldEventType, "mcp_started"),
		logging.String("work_dir", s.ports.WorkDir),
	)
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// MCP returns the underlying server, for in-process transports.
func (s *Server) MCP() *mcp.Server {
	return s.server
}
