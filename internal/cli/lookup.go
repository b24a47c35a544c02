package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BradenHooton/jardim/internal/auth"
	"github.com/BradenHooton/jardim/internal/config"
	"github.com/BradenHooton/jardim/internal/models"
	"github.com/BradenHooton/jardim/internal/notify"
	"github.com/BradenHooton/jardim/internal/recordclient"
	"github.com/BradenHooton/jardim/internal/workflow"
	"github.com/BradenHooton/jardim/pkg/nationalid"
)

var (
	tokenFlag  string
	passwdID   int64
	errNoToken = errors.New("an access token is required: pass --token or set JARDIM_TOKEN")
)

// lookupResult is the record printed by lookup, with its national ID as the
// console shows it
type lookupResult struct {
	*models.Record
	NationalIDDisplay string `json:"cpf_display"`
}

var lookupCmd = &cobra.Command{
	Use:   "lookup QUERY",
	Short: "Look a record up through the record service",
	Long: `Looks a record up the way the console pages do. Admin tokens search
by numeric ID, other tokens by national ID (CPF).`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, queue, err := newCLIWorkflow()
		if err != nil {
			return err
		}

		searchErr := wf.SubmitSearch(cmd.Context(), args[0])
		printNotices(cmd, queue)
		if searchErr != nil {
			return searchErr
		}
		rec := wf.Snapshot().Record
		display := nationalid.NotProvided
		if rec.NationalID != nil {
			display = nationalid.Display(*rec.NationalID)
		}
		return printJSON(cmd, lookupResult{Record: rec, NationalIDDisplay: display})
	},
}

var passwdCmd = &cobra.Command{
	Use:   "passwd",
	Short: "Change a password through the record service",
	Long: `Changes a password. Admin tokens change the admin account given by
--id (defaulting to their own); other tokens change their own password.
Three lines are read from standard input: the current password, the new
password and its confirmation.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		wf, queue, err := newCLIWorkflow()
		if err != nil {
			return err
		}

		subject := wf.Subject()
		if subject.Privileged() {
			target := passwdID
			if target == 0 {
				target = subject.ID
			}
			err := wf.SubmitSearch(cmd.Context(), strconv.FormatInt(target, 10))
			printNotices(cmd, queue)
			if err != nil {
				return err
			}
		} else {
			wf.Show(subject.Record())
		}

		lines, err := readLines(cmd.InOrStdin(), 3)
		if err != nil {
			return fmt.Errorf("failed to read passwords: %w", err)
		}

		err = wf.SubmitCredentialUpdate(cmd.Context(), lines[0], lines[1], lines[2])
		printNotices(cmd, queue)
		return err
	},
}

func init() {
	for _, c := range []*cobra.Command{lookupCmd, passwdCmd} {
		c.Flags().StringVar(&tokenFlag, "token", "", "access token (defaults to JARDIM_TOKEN)")
	}
	passwdCmd.Flags().Int64Var(&passwdID, "id", 0, "admin account to change (admin tokens only)")
}

// newCLIWorkflow builds a workflow for the token's subject. The token is
// read without verification; the record service checks it.
func newCLIWorkflow() (*workflow.Workflow, *notify.Queue, error) {
	cfg, err := config.LoadClient()
	if err != nil {
		return nil, nil, err
	}
	logger := newLogger(cfg.Server.LogLevel)

	token := tokenFlag
	if token == "" {
		token = os.Getenv("JARDIM_TOKEN")
	}
	if token == "" {
		return nil, nil, errNoToken
	}
	subject, err := auth.UnverifiedSubject(token)
	if err != nil {
		return nil, nil, err
	}

	queue := notify.NewQueue(notify.DefaultQueueSize)
	client := recordclient.New(cfg.Records.BaseURL, cfg.Records.Timeout, logger, recordclient.WithToken(token))
	return workflow.ForSubject(subject, client, queue, logger), queue, nil
}

func printNotices(cmd *cobra.Command, queue *notify.Queue) {
	for _, n := range queue.Drain() {
		fmt.Fprintf(cmd.ErrOrStderr(), "[%s] %s\n", n.Outcome, n.Message)
	}
}

func readLine(r io.Reader) (string, error) {
	lines, err := readLines(r, 1)
	if err != nil {
		return "", err
	}
	return lines[0], nil
}

// readLines reads exactly n lines, without their line endings
func readLines(r io.Reader, n int) ([]string, error) {
	scanner := bufio.NewScanner(r)
	lines := make([]string, 0, n)
	for len(lines) < n && scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), "\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(lines) < n {
		return nil, fmt.Errorf("expected %d lines, got %d", n, len(lines))
	}
	return lines, nil
}
