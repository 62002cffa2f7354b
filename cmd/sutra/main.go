// Command sutra is a tiny CLI for driving a ConcurrentMemory instance by
// hand: learn a concept or association, run a query, or print stats
// against a storage directory on disk. It is not a server — there is no
// network surface — just enough plumbing to smoke-test the engine without
// writing a throwaway Go program.
package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sutradb/sutra/config"
	"github.com/sutradb/sutra/memory"
	"github.com/sutradb/sutra/types"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "sutra:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return usageErr()
	}

	fs := flag.NewFlagSet("sutra", flag.ContinueOnError)
	storagePath := fs.String("storage", "./sutra-data", "storage directory (mmapstore file, wal, hnsw index)")
	dimension := fs.String("dimension", "384", "vector dimension")
	if err := fs.Parse(args); err != nil {
		return err
	}
	rest := fs.Args()
	if len(rest) == 0 {
		return usageErr()
	}
	dim, err := strconv.Atoi(*dimension)
	if err != nil {
		return fmt.Errorf("parse -dimension: %w", err)
	}

	logger := log.NewLogfmtLogger(os.Stderr)
	cfg := memory.Config{Config: config.DefaultConfig()}
	cfg.StoragePath = *storagePath
	cfg.VectorDimension = dim
	cfg.Logger = logger
	cfg.Registerer = prometheus.NewRegistry()

	m, err := memory.New(cfg)
	if err != nil {
		return fmt.Errorf("open memory: %w", err)
	}
	defer func() {
		if err := m.Shutdown(context.Background()); err != nil {
			level.Error(logger).Log("msg", "shutdown error", "err", err)
		}
	}()

	switch rest[0] {
	case "learn-concept":
		return cmdLearnConcept(m, rest[1:])
	case "learn-association":
		return cmdLearnAssociation(m, rest[1:])
	case "query-concept":
		return cmdQueryConcept(m, rest[1:])
	case "find-path":
		return cmdFindPath(m, rest[1:])
	case "text-search":
		return cmdTextSearch(m, rest[1:])
	case "stats":
		return cmdStats(m)
	case "flush":
		return m.Flush(context.Background())
	default:
		return usageErr()
	}
}

func usageErr() error {
	return fmt.Errorf(`usage: sutra [-storage path] [-dimension n] <command> [args...]

commands:
  learn-concept <id-hex> <content>
  learn-association <source-hex> <target-hex> <type> <confidence>
  query-concept <id-hex>
  find-path <start-hex> <end-hex> <max-depth>
  text-search <query> <limit>
  stats
  flush`)
}

func parseID(s string) (types.ConceptId, error) {
	return types.ParseConceptId(s)
}

func cmdLearnConcept(m *memory.Memory, args []string) error {
	if len(args) < 2 {
		return usageErr()
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	content := strings.Join(args[1:], " ")
	seq, err := m.LearnConcept(id, []byte(content), nil, 1, 1)
	if err != nil {
		return err
	}
	fmt.Println("sequence:", seq)
	return nil
}

func cmdLearnAssociation(m *memory.Memory, args []string) error {
	if len(args) != 4 {
		return usageErr()
	}
	source, err := parseID(args[0])
	if err != nil {
		return err
	}
	target, err := parseID(args[1])
	if err != nil {
		return err
	}
	assocType, err := parseAssociationType(args[2])
	if err != nil {
		return err
	}
	confidence, err := strconv.ParseFloat(args[3], 32)
	if err != nil {
		return fmt.Errorf("parse confidence: %w", err)
	}
	seq, err := m.LearnAssociation(source, target, assocType, float32(confidence))
	if err != nil {
		return err
	}
	fmt.Println("sequence:", seq)
	return nil
}

func parseAssociationType(s string) (types.AssociationType, error) {
	switch strings.ToLower(s) {
	case "semantic":
		return types.AssociationSemantic, nil
	case "causal":
		return types.AssociationCausal, nil
	case "temporal":
		return types.AssociationTemporal, nil
	case "hierarchical":
		return types.AssociationHierarchical, nil
	case "similar":
		return types.AssociationSimilar, nil
	default:
		return 0, fmt.Errorf("unknown association type %q", s)
	}
}

func cmdQueryConcept(m *memory.Memory, args []string) error {
	if len(args) != 1 {
		return usageErr()
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	c, ok := m.QueryConcept(id)
	if !ok {
		fmt.Println("not found")
		return nil
	}
	fmt.Printf("id=%s content=%q strength=%.3f confidence=%.3f neighbors=%d\n",
		hex.EncodeToString(c.ID[:]), c.Content, c.Strength, c.Confidence, len(c.Neighbors))
	return nil
}

func cmdFindPath(m *memory.Memory, args []string) error {
	if len(args) != 3 {
		return usageErr()
	}
	start, err := parseID(args[0])
	if err != nil {
		return err
	}
	end, err := parseID(args[1])
	if err != nil {
		return err
	}
	maxDepth, err := strconv.Atoi(args[2])
	if err != nil {
		return fmt.Errorf("parse max-depth: %w", err)
	}
	path := m.FindPath(start, end, maxDepth)
	if path == nil {
		fmt.Println("no path")
		return nil
	}
	ids := make([]string, len(path))
	for i, id := range path {
		ids[i] = id.String()
	}
	fmt.Println(strings.Join(ids, " -> "))
	return nil
}

func cmdTextSearch(m *memory.Memory, args []string) error {
	if len(args) < 2 {
		return usageErr()
	}
	limit, err := strconv.Atoi(args[len(args)-1])
	if err != nil {
		return fmt.Errorf("parse limit: %w", err)
	}
	query := strings.Join(args[:len(args)-1], " ")
	for _, r := range m.TextSearch(query, limit) {
		fmt.Printf("%s score=%.3f content=%q\n", r.ID.String(), r.Score, r.Content)
	}
	return nil
}

func cmdStats(m *memory.Memory) error {
	s := m.Stats()
	fmt.Printf("concepts=%d edges=%d sequence=%d reconciler_cycle=%d reconciler_interval_ms=%.1f hnsw_len=%d hnsw_dirty=%v\n",
		s.Snapshot.ConceptCount, s.Snapshot.EdgeCount, s.Snapshot.Sequence,
		s.Reconciler.Cycle, s.Reconciler.IntervalMs, s.Hnsw.Len, s.Hnsw.Dirty)
	return nil
}
