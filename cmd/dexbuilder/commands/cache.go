package commands

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"git.home.luguber.info/inful/dexbuilder/internal/config"
)

// CacheCmd groups the cache maintenance subcommands.
type CacheCmd struct {
	Stats CacheStatsCmd `cmd:"" help:"Show cache contents per namespace"`
	Clear CacheClearCmd `cmd:"" help:"Remove cached entries"`
}

// CacheStatsCmd implements 'cache stats'.
type CacheStatsCmd struct{}

func (s *CacheStatsCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	st, err := store.Stats(context.Background())
	if err != nil {
		return err
	}

	rows := [][]string{{"pages", strconv.Itoa(st.Pages), humanBytes(st.PageBytes)}}
	tiers := make([]string, 0, len(st.Artifacts))
	for tier := range st.Artifacts {
		tiers = append(tiers, tier)
	}
	sort.Strings(tiers)
	for _, tier := range tiers {
		rows = append(rows, []string{
			"images/" + tier,
			strconv.Itoa(st.Artifacts[tier]),
			humanBytes(st.ArtifactBytes[tier]),
		})
	}

	fmt.Printf("Cache directory: %s\n", cfg.Cache.Dir)
	fmt.Println(renderTable([]string{"Namespace", "Entries", "Size"}, rows,
		[]columnAlignment{alignLeft, alignRight, alignRight}))
	return nil
}

// CacheClearCmd implements 'cache clear'.
type CacheClearCmd struct {
	Tier string `help:"Clear one namespace only: a quality tier (fast, high) or 'pages'"`
}

func (c *CacheClearCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Clear(context.Background(), c.Tier); err != nil {
		return err
	}
	if c.Tier == "" {
		fmt.Println("Cache cleared")
	} else {
		fmt.Printf("Cleared namespace %s\n", c.Tier)
	}
	return nil
}
