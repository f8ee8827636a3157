// Package setup holds the first-run terminal wizard that writes a config file.
package setup

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/paperdesk/paperdesk/config"
)

var (
	subtle    = lipgloss.AdaptiveColor{Light: "#D9DCCF", Dark: "#383838"}
	highlight = lipgloss.AdaptiveColor{Light: "#874BFD", Dark: "#7D56F4"}
	special   = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}

	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Background(highlight).
			Padding(1, 2).
			Bold(true).
			MarginBottom(1)

	stepStyle = lipgloss.NewStyle().
			Foreground(special).
			Bold(true).
			MarginTop(1).
			MarginBottom(0)
)

// RunTUI launches the terminal configuration wizard.
func RunTUI() error {
	var (
		market          string
		quoteAPIURL     string
		feedURL         string
		listenAddr      string
		refreshStr      string
		startingBalance string
		confirm         bool
	)

	// defaults
	quoteAPIURL = config.DefaultQuoteAPIURL
	listenAddr = config.DefaultListenAddr
	refreshStr = config.DefaultRefreshInterval.String()

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("PAPERDESK CONFIG WIZARD"))
	fmt.Println(lipgloss.NewStyle().Foreground(subtle).Render("Set up your paper trading desk.\n"))

	fmt.Println(stepStyle.Render("STEP 1: MARKET"))
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Which market schedule should gate trading?").
				Options(
					huh.NewOption("US (NASDAQ/NYSE, 09:30-16:00 ET)", "us"),
					huh.NewOption("India (NSE/BSE, 09:15-15:30 IST)", "in"),
					huh.NewOption("UK (LSE, 08:00-16:30 London)", "uk"),
					huh.NewOption("Japan (JPX, 09:00-15:00 JST)", "jp"),
				).
				Value(&market),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("PAPERDESK CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 2: DATA SOURCES"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Quote API base URL").
				Value(&quoteAPIURL).
				Validate(func(s string) error {
					if s == "" {
						return fmt.Errorf("quote API URL cannot be empty")
					}
					return nil
				}),
			huh.NewInput().
				Title("Tick feed websocket URL").
				Description("Optional, leave empty to poll only").
				Value(&feedURL),
			huh.NewInput().
				Title("Quote refresh interval").
				Description("Duration string (e.g. 2s, 5s, 1m)").
				Value(&refreshStr).
				Validate(func(s string) error {
					d, err := time.ParseDuration(s)
					if err != nil {
						return err
					}
					if d <= 0 {
						return fmt.Errorf("must be positive")
					}
					return nil
				}),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("PAPERDESK CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("STEP 3: DESK"))
	err = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("HTTP listen address").
				Value(&listenAddr),
			huh.NewInput().
				Title("Starting cash balance").
				Description("Leave empty to keep the built-in 1,000,000 seed").
				Value(&startingBalance).
				Validate(validateBalance),
		),
	).Run()
	if err != nil {
		return err
	}

	fmt.Print("\033[H\033[2J")
	fmt.Println(headerStyle.Render("PAPERDESK CONFIG WIZARD"))
	fmt.Println(stepStyle.Render("FINAL CONFIRMATION"))

	summary := fmt.Sprintf(
		"Market: %s\nQuote API: %s\nFeed: %s\nListen: %s\nRefresh: %s\n",
		market, quoteAPIURL, orDash(feedURL), listenAddr, refreshStr,
	)
	fmt.Println(lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(1).Render(summary))

	err = huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Save Configuration?").
				Affirmative("Yes, save and start").
				Negative("No, exit").
				Value(&confirm),
		),
	).Run()
	if err != nil {
		return err
	}
	if !confirm {
		return fmt.Errorf("setup cancelled by user")
	}

	refresh, _ := time.ParseDuration(refreshStr)
	cfgTmp := config.ConfigTmp{
		ListenAddr:      listenAddr,
		Market:          market,
		QuoteAPIURL:     quoteAPIURL,
		FeedURL:         feedURL,
		RefreshInterval: refresh,
		StartingBalance: startingBalance,
	}

	data, err := yaml.Marshal(cfgTmp)
	if err != nil {
		return fmt.Errorf("failed to generate yaml: %w", err)
	}

	filename := "config.gen.yaml"
	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}

	fmt.Println(lipgloss.NewStyle().Foreground(special).Render(
		fmt.Sprintf("\n✓ Configuration saved to %s\nStarting desk...", filename)))
	time.Sleep(1500 * time.Millisecond)
	return nil
}

func validateBalance(s string) error {
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("must be a valid number")
	}
	if d.IsNegative() {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

func orDash(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
