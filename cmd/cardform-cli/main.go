package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"

	"cardform-service/client"
	"cardform-service/models"
)

var prompts = []struct {
	field   models.Field
	message string
	help    string
}{
	{models.FieldCardholder, "Cardholder name", "Letters, spaces, apostrophes, periods and hyphens"},
	{models.FieldCardNumber, "Card number", "16 digits; spaces are added for you"},
	{models.FieldExpiry, "Expiry (MM/YY)", "Month and two-digit year"},
	{models.FieldCVV, "CVV", "3 digits on the back of the card"},
}

func main() {
	server := flag.String("server", "http://localhost:8081", "cardform-service base URL")
	timeout := flag.Duration("timeout", 10*time.Second, "per-request timeout")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	c := client.New(*server, *timeout)
	if err := run(ctx, c); err != nil {
		if errors.Is(err, terminal.InterruptErr) || errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		log.Fatalf("cardform-cli: %v", err)
	}
}

func run(ctx context.Context, c *client.Client) error {
	snap, err := c.Create(ctx)
	if err != nil {
		return err
	}
	id := snap.SessionID

	for {
		for _, p := range prompts {
			if err := askField(ctx, c, id, p.field, p.message, p.help); err != nil {
				return err
			}
		}

		snap, err = c.Get(ctx, id)
		if err != nil {
			return err
		}
		printCard(snap.Preview)

		confirm := false
		if err := survey.AskOne(&survey.Confirm{Message: snap.Button.Label + "?", Default: true}, &confirm); err != nil {
			return err
		}
		if !confirm {
			again := false
			if err := survey.AskOne(&survey.Confirm{Message: "Start over?"}, &again); err != nil {
				return err
			}
			if !again {
				return nil
			}
			if _, err := c.Reset(ctx, id); err != nil {
				return err
			}
			continue
		}

		snap, failed, err := c.Submit(ctx, id)
		if err != nil {
			return err
		}
		if len(failed) > 0 {
			for _, p := range prompts {
				if msg, ok := failed[p.field]; ok {
					fmt.Printf("  %s: %s\n", p.message, msg)
				}
			}
			continue
		}

		fmt.Println(snap.Button.Label)
		snap, err = c.WaitIdle(ctx, id, 250*time.Millisecond)
		if err != nil {
			return err
		}
		if snap.Notification != nil {
			fmt.Println(snap.Notification.Message)
		}
		return nil
	}
}

// askField prompts until the service accepts the value for field.
func askField(ctx context.Context, c *client.Client, id string, field models.Field, message, help string) error {
	var formatted string
	validate := func(ans interface{}) error {
		raw, _ := ans.(string)
		snap, err := c.Input(ctx, id, field, raw)
		if err != nil {
			return err
		}
		view := snap.Fields[field]
		if view.Status == models.StatusInvalid {
			return errors.New(view.Message)
		}
		if view.Value == "" {
			return errors.New("value is required")
		}
		formatted = view.Value
		return nil
	}

	var answer string
	if err := survey.AskOne(&survey.Input{Message: message, Help: help}, &answer, survey.WithValidator(validate)); err != nil {
		return err
	}
	if formatted != answer {
		fmt.Printf("  → %s\n", formatted)
	}
	return nil
}

func printCard(p models.Preview) {
	fmt.Println("┌──────────────────────────┐")
	fmt.Printf("│ %-24s │\n", p.CardNumber)
	fmt.Printf("│ %-18s %5s │\n", p.Cardholder, p.Expiry)
	fmt.Println("└──────────────────────────┘")
}
