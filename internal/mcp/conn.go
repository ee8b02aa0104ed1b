package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/Cyclone1070/sidecar/internal/logger"
	"github.com/rs/zerolog"
)

// waitDelay bounds how long Wait blocks on stdio copies after the child is killed.
const waitDelay = 2 * time.Second

// conn is one live stdio server process. Requests are serialized by callMu
// because the pipe cannot carry overlapping exchanges.
type conn struct {
	name    string
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	timeout time.Duration
	log     zerolog.Logger

	callMu sync.Mutex
	nextID int64

	writeMu sync.Mutex

	lines      chan []byte
	done       chan struct{}
	readerDone chan struct{}
	closeOnce  sync.Once
}

// spawn starts the server process and its stdout reader.
func spawn(cfg ServerConfig, timeout time.Duration, log zerolog.Logger) (*conn, error) {
	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = mergeEnv(os.Environ(), cfg.Env)
	cmd.Stderr = logger.NewLineWriter(log.With().Str("stream", "stderr").Logger())
	cmd.WaitDelay = waitDelay

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", cfg.Command, err)
	}

	c := &conn{
		name:       cfg.Name,
		cmd:        cmd,
		stdin:      stdin,
		timeout:    timeout,
		log:        log,
		lines:      make(chan []byte),
		done:       make(chan struct{}),
		readerDone: make(chan struct{}),
	}
	go c.readLoop(stdout)
	return c, nil
}

func (c *conn) readLoop(r io.Reader) {
	defer close(c.readerDone)
	defer close(c.lines)

	br := bufio.NewReader(r)
	for {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			select {
			case c.lines <- line:
			case <-c.done:
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				c.log.Debug().Err(err).Msg("stdout reader stopped")
			}
			return
		}
	}
}

// call sends a request and waits for the response with the same id.
// Lines that are not JSON objects or carry another id are skipped. The
// timeout applies to each line read.
func (c *conn) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	c.callMu.Lock()
	defer c.callMu.Unlock()

	c.nextID++
	id := c.nextID
	if err := c.write(request{JSONRPC: jsonRPCVersion, ID: &id, Method: method, Params: params}); err != nil {
		return nil, err
	}

	timer := time.NewTimer(c.timeout)
	defer timer.Stop()

	for {
		select {
		case line, ok := <-c.lines:
			if !ok {
				return nil, ErrConnectionClosed
			}
			timer.Reset(c.timeout)

			var resp response
			if err := json.Unmarshal(line, &resp); err != nil {
				c.log.Debug().Str("line", truncate(string(line), 200)).Msg("skipping non-JSON line")
				continue
			}
			if resp.ID == nil || *resp.ID != id {
				continue
			}
			if resp.Error != nil {
				return nil, &RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
			}
			return resp.Result, nil
		case <-timer.C:
			return nil, fmt.Errorf("%s: %w", method, ErrTimeout)
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// notify sends a notification. No reply is read.
func (c *conn) notify(method string, params any) error {
	return c.write(request{JSONRPC: jsonRPCVersion, Method: method, Params: params})
}

func (c *conn) write(req request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	data = append(data, '\n')

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if _, err := c.stdin.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", req.Method, err)
	}
	return nil
}

// handshake runs initialize, the initialized notification and tools/list.
func (c *conn) handshake(ctx context.Context, version string) ([]Tool, error) {
	params := initializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      clientInfo{Name: ClientName, Version: version},
	}
	if _, err := c.call(ctx, methodInitialize, params); err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}
	if err := c.notify(methodInitialized, map[string]any{}); err != nil {
		return nil, err
	}

	raw, err := c.call(ctx, methodToolsList, map[string]any{})
	if err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	var result listToolsResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("list tools: %w", err)
	}
	return result.Tools, nil
}

// close tears the process down. Errors are swallowed.
func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.stdin.Close()
		if c.cmd.Process != nil {
			_ = c.cmd.Process.Kill()
		}
		_ = c.cmd.Wait()
		<-c.readerDone
	})
}

func mergeEnv(base []string, overlay map[string]string) []string {
	if len(overlay) == 0 {
		return base
	}
	env := make([]string, 0, len(base)+len(overlay))
	env = append(env, base...)
	// Later entries win in exec.
	for k, v := range overlay {
		env = append(env, k+"="+v)
	}
	return env
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
