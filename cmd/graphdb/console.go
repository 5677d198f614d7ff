package main

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/conure-db/graphdb/internal/config"
	"github.com/conure-db/graphdb/internal/graphmodel"
	"github.com/conure-db/graphdb/internal/query"
	"github.com/conure-db/graphdb/internal/repository"
)

// console is the embedded, in-process interactive front end: a small
// set of explicit commands exercising CREATE/MATCH steps and the
// repository's snapshot/restore pair, in place of the two surface-
// language parsers spec.md leaves out of scope. It merges the
// teacher's cmd/conure-db flag/config skeleton with cmd/repl's
// interactive-loop shape, replacing cmd/repl's HTTP-backed remote
// commands with direct, in-process calls against a Session.
type console struct {
	cfg     config.Config
	dataDir string
	repo    *repository.Repository
	session *query.Session

	ok   *color.Color
	warn *color.Color
	err  *color.Color
}

func newConsole(cfg config.Config, repo *repository.Repository) *console {
	color.NoColor = cfg.NoColor
	return &console{
		cfg:     cfg,
		dataDir: cfg.DataDir,
		repo:    repo,
		session: query.NewSessionWithReentryLimit(query.NewDriver(repo), cfg.SessionMaxReentry),
		ok:      color.New(color.FgGreen),
		warn:    color.New(color.FgYellow),
		err:     color.New(color.FgRed),
	}
}

func (c *console) run() error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          c.cfg.Prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("console: readline: %w", err)
	}
	defer rl.Close()

	fmt.Println("graphdb console — type :help for commands")
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			if len(strings.TrimSpace(line)) == 0 {
				break
			}
			continue
		} else if err == io.EOF {
			break
		} else if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == ":quit" || line == ":exit" {
			break
		}
		c.dispatch(line)
	}
	return nil
}

func (c *console) dispatch(line string) {
	fields := strings.Fields(line)
	cmd := fields[0]
	args := fields[1:]

	var err error
	switch cmd {
	case ":help":
		c.printHelp()
	case ":save":
		err = c.cmdSave()
	case ":load":
		err = c.cmdLoad()
	case "create":
		err = c.cmdCreate(args)
	case "match":
		err = c.cmdMatch(args)
	case "link":
		err = c.cmdLink(args)
	default:
		c.err.Printf("unknown command %q (try :help)\n", cmd)
		return
	}
	if err != nil {
		c.err.Printf("error: %v\n", err)
	}
}

func (c *console) printHelp() {
	fmt.Println(`commands:
  create <label>[,<label>...] [key=value ...]   create a vertex, print its id
  match <label>[,<label>...] [key=value ...]    print every matching vertex
  link <type> <sourceID> <targetID> [k=v ...]   create a relationship between two existing vertices
  :save                                         snapshot vertices/edges to disk
  :load                                         close and reopen the repository from its last snapshot
  :quit, :exit                                  leave the console`)
}

func (c *console) cmdSave() error {
	c.repo.RLock()
	err := c.repo.Snapshot()
	c.repo.RUnlock()
	if err != nil {
		return err
	}
	c.ok.Println("saved")
	return nil
}

// cmdLoad discards all in-memory state and reopens the repository from
// its last snapshot on disk, exercising the same restoreFrom path Open
// runs at startup (the teacher's db.DB.RestoreFrom / SnapshotTo pair,
// adapted to this engine's JSON-line rows).
func (c *console) cmdLoad() error {
	if err := c.repo.Close(); err != nil {
		return err
	}
	repo, err := repository.Open(c.dataDir)
	if err != nil {
		return err
	}
	c.repo = repo
	c.session = query.NewSessionWithReentryLimit(query.NewDriver(repo), c.cfg.SessionMaxReentry)
	c.ok.Println("reloaded")
	return nil
}

func (c *console) cmdCreate(args []string) error {
	labels, props, err := splitArgs(args)
	if err != nil {
		return err
	}
	var pattern graphmodel.PropertyGraph
	pattern.AddVertex(graphmodel.Vertex{Labels: labels, Properties: props})

	res, err := c.session.Dispatch(context.Background(), []query.Step{
		{Kind: query.StepCreate, Patterns: []*graphmodel.PropertyGraph{&pattern}},
	})
	if err != nil {
		return err
	}
	id := res.Steps[0].Patterns[0].BoundVertices[0]
	c.ok.Printf("created vertex %d\n", id)
	return nil
}

func (c *console) cmdMatch(args []string) error {
	labels, props, err := splitArgs(args)
	if err != nil {
		return err
	}
	var pattern graphmodel.PropertyGraph
	pattern.AddVertex(graphmodel.Vertex{Labels: labels, Properties: props})

	res, err := c.session.Dispatch(context.Background(), []query.Step{
		{Kind: query.StepMatch, Patterns: []*graphmodel.PropertyGraph{&pattern}},
	})
	if err != nil {
		return err
	}
	mappings := res.Steps[0].Patterns[0].Mappings
	ids := make([]graphmodel.VertexID, 0, len(mappings))
	for _, m := range mappings {
		ids = append(ids, m.Vertices[0])
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if len(ids) == 0 {
		c.warn.Println("no matches")
		return nil
	}
	for _, id := range ids {
		fmt.Printf("%d\n", id)
	}
	return nil
}

func (c *console) cmdLink(args []string) error {
	if len(args) < 3 {
		return fmt.Errorf("usage: link <type> <sourceID> <targetID> [key=value ...]")
	}
	relType := args[0]
	source, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("source id: %w", err)
	}
	target, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("target id: %w", err)
	}
	_, props, err := splitArgs(args[3:])
	if err != nil {
		return err
	}

	var pattern graphmodel.PropertyGraph
	src := pattern.AddVertex(graphmodel.Vertex{ID: source})
	dst := pattern.AddVertex(graphmodel.Vertex{ID: target})
	if _, err := pattern.AddRelationship(graphmodel.Relationship{Type: relType, Source: src, Target: dst, Properties: props}); err != nil {
		return err
	}

	_, err = c.session.Dispatch(context.Background(), []query.Step{
		{Kind: query.StepCreate, Patterns: []*graphmodel.PropertyGraph{&pattern}},
	})
	if err != nil {
		return err
	}
	c.ok.Println("linked")
	return nil
}

// splitArgs separates comma-separated labels from key=value property
// pairs: the first token (if it contains no '=') is taken as the
// label list, everything else must be key=value.
func splitArgs(args []string) ([]string, graphmodel.Properties, error) {
	if len(args) == 0 {
		return nil, nil, nil
	}
	var labels []string
	rest := args
	if !strings.Contains(args[0], "=") {
		labels = strings.Split(args[0], ",")
		rest = args[1:]
	}
	var props graphmodel.Properties
	for _, tok := range rest {
		k, v, ok := strings.Cut(tok, "=")
		if !ok {
			return nil, nil, fmt.Errorf("expected key=value, got %q", tok)
		}
		if props == nil {
			props = make(graphmodel.Properties)
		}
		props[k] = parseValue(v)
	}
	return labels, props, nil
}

// parseValue tries int64, then float64, then the literals true/false
// as bool, before falling back to string, matching the property Value
// kinds internal/graphmodel defines.
func parseValue(s string) graphmodel.Value {
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	if s == "true" {
		return true
	}
	if s == "false" {
		return false
	}
	return s
}
