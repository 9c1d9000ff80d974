package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"git.home.luguber.info/inful/dexbuilder/internal/config"
	"git.home.luguber.info/inful/dexbuilder/internal/fetch"
	"git.home.luguber.info/inful/dexbuilder/internal/parse"
	"git.home.luguber.info/inful/dexbuilder/internal/retry"
)

// IndexCmd implements the 'index' command: fetch and parse the catalog index
// and print the roster, without building anything.
type IndexCmd struct{}

func (i *IndexCmd) Run(_ *Global, root *CLI) error {
	cfg, err := config.Load(root.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	configureLogging(cfg, root.Verbose)

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	client := fetch.New(fetch.Options{
		Store:      store,
		Policy:     retry.FromConfig(cfg.Fetch),
		UserAgent:  cfg.Source.UserAgent,
		SiteRoot:   cfg.Source.SiteRoot,
		Politeness: config.Duration(cfg.Fetch.PolitenessDelay, 0),
		Timeout:    config.Duration(cfg.Fetch.Timeout, 0),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	data, err := client.Get(ctx, cfg.Source.IndexURL, fetch.ProfileDocument)
	if err != nil {
		return fmt.Errorf("fetch index: %w", err)
	}
	idx, err := parse.ParseIndex(data, cfg.Source.IndexURL)
	if err != nil {
		return err
	}

	rows := make([][]string, 0, idx.Len())
	for _, id := range idx.IDs() {
		url, _ := idx.PageURL(id)
		rows = append(rows, []string{id.Display(), url})
	}
	fmt.Printf("%d catalog entries\n", idx.Len())
	fmt.Println(renderTable([]string{"Entry", "Page"}, rows, []columnAlignment{alignRight, alignLeft}))
	return nil
}
