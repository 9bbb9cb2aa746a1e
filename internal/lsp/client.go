package lsp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/corvid-labs/mrsentry/internal/errs"
)

const maxHeaderBytes = 8 * 1024

// ServerCommand names the language server binary and arguments to spawn,
// taken from config per target language.
type ServerCommand struct {
	Command string
	Args    []string
}

// Client manages a single language-server subprocess over stdio framed
// JSON-RPC. Requests are
// tracked by id in a map guarded by a mutex; a dedicated goroutine reads
// framed messages and routes responses to the waiting caller while logging
// and dropping notifications.
type Client struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader
	logger *zap.Logger

	nextID  int64
	mu      sync.Mutex
	pending map[int64]chan *rpcMessage

	legend []string

	readErr atomic.Value // error
	done    chan struct{}
}

// Start spawns the server and performs the initialize/initialized
// handshake against rootURI, recording the semantic-token legend (spec
// §4.3 steps 1-3).
func Start(ctx context.Context, sc ServerCommand, rootURI string, workspaceFolders []string, logger *zap.Logger) (*Client, error) {
	cmd := exec.CommandContext(ctx, sc.Command, sc.Args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errs.Wrap(errs.LSP, "lsp.client", "open stdin pipe", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errs.Wrap(errs.LSP, "lsp.client", "open stdout pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, errs.Wrap(errs.LSP, "lsp.client", "spawn language server", err)
	}

	c := &Client{
		cmd:     cmd,
		stdin:   stdin,
		stdout:  bufio.NewReaderSize(stdout, 64*1024),
		logger:  logger,
		pending: make(map[int64]chan *rpcMessage),
		done:    make(chan struct{}),
	}
	go c.readLoop()

	folders := make([]workspaceFolder, len(workspaceFolders))
	for i, uri := range workspaceFolders {
		folders[i] = workspaceFolder{URI: uri, Name: uri}
	}

	var initResult initializeResult
	if err := c.call(ctx, "initialize", initializeParams{
		RootURI:          rootURI,
		WorkspaceFolders: folders,
		Capabilities:     map[string]any{},
	}, &initResult); err != nil {
		return nil, err
	}
	c.legend = initResult.Capabilities.SemanticTokensProvider.Legend.TokenTypes

	if err := c.notify("initialized", struct{}{}); err != nil {
		return nil, err
	}
	return c, nil
}

// DidOpen sends textDocument/didOpen for one file.
func (c *Client) DidOpen(uri, languageID, text string) error {
	return c.notify("textDocument/didOpen", didOpenParams{
		TextDocument: textDocumentItem{URI: uri, LanguageID: languageID, Version: 1, Text: text},
	})
}

// DocumentSymbols requests textDocument/documentSymbol.
func (c *Client) DocumentSymbols(ctx context.Context, uri string) ([]DocumentSymbol, error) {
	var result []DocumentSymbol
	err := c.call(ctx, "textDocument/documentSymbol", documentSymbolParams{TextDocument: textDocumentIdentifier{URI: uri}}, &result)
	return result, err
}

// SemanticTokens requests textDocument/semanticTokens/full and returns the
// raw relative-delta-encoded data array.
func (c *Client) SemanticTokens(ctx context.Context, uri string) ([]uint32, error) {
	var result semanticTokensResult
	err := c.call(ctx, "textDocument/semanticTokens/full", semanticTokensParams{TextDocument: textDocumentIdentifier{URI: uri}}, &result)
	return result.Data, err
}

// Hover requests textDocument/hover at pos.
func (c *Client) Hover(ctx context.Context, uri string, pos Position) (*Hover, error) {
	var result *Hover
	err := c.call(ctx, "textDocument/hover", textDocumentPositionParams{TextDocument: textDocumentIdentifier{URI: uri}, Position: pos}, &result)
	return result, err
}

// Definition requests textDocument/definition at pos.
func (c *Client) Definition(ctx context.Context, uri string, pos Position) ([]Location, error) {
	var result []Location
	err := c.call(ctx, "textDocument/definition", textDocumentPositionParams{TextDocument: textDocumentIdentifier{URI: uri}, Position: pos}, &result)
	return result, err
}

// References requests textDocument/references at pos.
func (c *Client) References(ctx context.Context, uri string, pos Position) ([]Location, error) {
	var result []Location
	err := c.call(ctx, "textDocument/references", referenceParams{
		TextDocument: textDocumentIdentifier{URI: uri},
		Position:     pos,
		Context:      referenceContext{IncludeDeclaration: false},
	}, &result)
	return result, err
}

// Legend returns the semantic-token legend's tokenTypes names captured at
// initialize.
func (c *Client) Legend() []string { return c.legend }

// Shutdown sends shutdown then exit, waiting up to 500ms for the shutdown
// response before unconditionally killing the process.
func (c *Client) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	var ignored json.RawMessage
	_ = c.call(ctx, "shutdown", nil, &ignored)
	_ = c.notify("exit", nil)
	_ = c.stdin.Close()
	_ = c.cmd.Process.Kill()
	<-c.done
}

func (c *Client) notify(method string, params any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return errs.Wrap(errs.Parse, "lsp.client", "marshal notification params", err)
	}
	return c.write(rpcMessage{JSONRPC: "2.0", Method: method, Params: body})
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	var body json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return errs.Wrap(errs.Parse, "lsp.client", "marshal request params", err)
		}
		body = b
	}

	id := atomic.AddInt64(&c.nextID, 1)
	ch := make(chan *rpcMessage, 1)
	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	if err := c.write(rpcMessage{JSONRPC: "2.0", ID: &id, Method: method, Params: body}); err != nil {
		return err
	}

	select {
	case <-ctx.Done():
		return errs.Wrap(errs.Timeout, "lsp.client", fmt.Sprintf("%s timed out", method), ctx.Err())
	case msg := <-ch:
		if msg.Error != nil {
			return errs.Wrap(errs.LSP, "lsp.client", fmt.Sprintf("%s returned an error", method), msg.Error)
		}
		if out == nil || len(msg.Result) == 0 {
			return nil
		}
		if err := json.Unmarshal(msg.Result, out); err != nil {
			return errs.Wrap(errs.Parse, "lsp.client", fmt.Sprintf("decode %s result", method), err)
		}
		return nil
	}
}

func (c *Client) write(msg rpcMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return errs.Wrap(errs.Parse, "lsp.client", "marshal rpc message", err)
	}
	framed := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(payload))
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.stdin.Write([]byte(framed)); err != nil {
		return errs.Wrap(errs.Transport, "lsp.client", "write header", err)
	}
	if _, err := c.stdin.Write(payload); err != nil {
		return errs.Wrap(errs.Transport, "lsp.client", "write body", err)
	}
	c.logger.Debug("lsp out", zap.String("method", msg.Method))
	return nil
}

// readLoop decodes framed messages until stdout closes, routing responses
// to pending requests and logging-then-dropping notifications.
func (c *Client) readLoop() {
	defer close(c.done)
	for {
		msg, err := c.readMessage()
		if err != nil {
			c.readErr.Store(err)
			return
		}
		if msg.ID != nil && msg.Method == "" {
			c.mu.Lock()
			ch, ok := c.pending[*msg.ID]
			c.mu.Unlock()
			if ok {
				ch <- msg
			}
			continue
		}
		c.logger.Debug("lsp notification", zap.String("method", msg.Method))
	}
}

func (c *Client) readMessage() (*rpcMessage, error) {
	contentLength := -1
	headerBytes := 0
	for {
		line, err := c.stdout.ReadString('\n')
		if err != nil {
			return nil, errs.Wrap(errs.Transport, "lsp.client", "read header line", err)
		}
		headerBytes += len(line)
		if headerBytes > maxHeaderBytes {
			return nil, errs.New(errs.LSP, "lsp.client", "header exceeds 8KiB cap")
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if trimmed == "" {
			break
		}
		if name, value, found := strings.Cut(trimmed, ":"); found && strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
			n, convErr := strconv.Atoi(strings.TrimSpace(value))
			if convErr != nil {
				return nil, errs.New(errs.LSP, "lsp.client", "invalid Content-Length")
			}
			contentLength = n
		}
	}
	if contentLength < 0 {
		return nil, errs.New(errs.LSP, "lsp.client", "missing Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(c.stdout, body); err != nil {
		return nil, errs.Wrap(errs.Transport, "lsp.client", "read message body", err)
	}

	var msg rpcMessage
	if err := json.Unmarshal(bytes.TrimSpace(body), &msg); err != nil {
		return nil, errs.Wrap(errs.Parse, "lsp.client", "decode rpc message", err)
	}
	return &msg, nil
}
