package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/dukex/issueflow/pkg/cmd"
	"github.com/dukex/issueflow/pkg/definition"
	"github.com/dukex/issueflow/pkg/lint"
	"github.com/dukex/issueflow/pkg/log"
	"github.com/dukex/issueflow/pkg/models"
	"github.com/dukex/issueflow/pkg/persistence"
	"github.com/dukex/issueflow/pkg/services"
	"github.com/urfave/cli/v3"
)

var (
	ErrMissingArgument = errors.New("missing argument")
	ErrLintFailed      = errors.New("workflow has lint errors")
)

func NewValidateCommand() *cli.Command {
	return &cli.Command{
		Name:      "validate",
		Aliases:   []string{"v"},
		Usage:     "Check a definition document against the schema and the graph rules",
		ArgsUsage: "<file>",
		Action: func(_ context.Context, command *cli.Command) error {
			doc, err := readDocument(command.Args().First())
			if err != nil {
				return err
			}

			findings := lint.Check(documentGraph(doc))
			printFindings(command.Root().Writer, findings)

			if lint.HasErrors(findings) {
				return ErrLintFailed
			}

			_, _ = fmt.Fprintf(command.Root().Writer, "%s: valid (%d steps, %d transitions)\n",
				doc.Name, len(doc.Steps), len(doc.Transitions))

			return nil
		},
	}
}

func NewImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Aliases:   []string{"i"},
		Usage:     "Create a workflow from a definition document",
		ArgsUsage: "<file>",
		Flags:     []cli.Flag{databaseURLFlag()},
		Action: func(ctx context.Context, command *cli.Command) error {
			doc, err := readDocument(command.Args().First())
			if err != nil {
				return err
			}

			return withDefinitions(ctx, command, func(definitions *services.Definitions) error {
				imported, err := definitions.Import(ctx, doc)
				if err != nil {
					return err
				}

				_, _ = fmt.Fprintf(command.Root().Writer, "imported workflow %s (%s)\n", imported.Workflow.ID, imported.Workflow.Name)

				return nil
			})
		},
	}
}

func NewExportCommand() *cli.Command {
	return &cli.Command{
		Name:      "export",
		Aliases:   []string{"e"},
		Usage:     "Print a stored workflow as a definition document",
		ArgsUsage: "<workflow-id>",
		Flags:     []cli.Flag{databaseURLFlag()},
		Action: func(ctx context.Context, command *cli.Command) error {
			id := command.Args().First()
			if id == "" {
				return fmt.Errorf("%w: workflow id", ErrMissingArgument)
			}

			return withDefinitions(ctx, command, func(definitions *services.Definitions) error {
				doc, err := definitions.Export(ctx, id)
				if err != nil {
					return err
				}

				data, err := definition.Marshal(doc)
				if err != nil {
					return err
				}

				_, err = fmt.Fprintln(command.Root().Writer, string(data))

				return err
			})
		},
	}
}

func NewLintCommand() *cli.Command {
	return &cli.Command{
		Name:      "lint",
		Aliases:   []string{"l"},
		Usage:     "Report structural problems of a stored workflow",
		ArgsUsage: "<workflow-id>",
		Flags:     []cli.Flag{databaseURLFlag()},
		Action: func(ctx context.Context, command *cli.Command) error {
			id := command.Args().First()
			if id == "" {
				return fmt.Errorf("%w: workflow id", ErrMissingArgument)
			}

			return withDefinitions(ctx, command, func(definitions *services.Definitions) error {
				def, err := definitions.Definition(ctx, id)
				if err != nil {
					return err
				}

				findings := lint.Check(def)
				printFindings(command.Root().Writer, findings)

				if lint.HasErrors(findings) {
					return ErrLintFailed
				}

				return nil
			})
		},
	}
}

// withDefinitions opens the store named by --database-url for the duration of fn.
func withDefinitions(ctx context.Context, command *cli.Command, fn func(*services.Definitions) error) error {
	log.Setup(command.String("log-level"))
	logger := log.WithModule("cli")

	store, err := cmd.NewPersistence(ctx, logger, command.String("database-url"))
	if err != nil {
		return err
	}

	defer func(p persistence.Persistence) {
		if err := p.Close(ctx); err != nil {
			logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	}(store)

	return fn(services.NewDefinitions(store, nil, logger))
}

func readDocument(path string) (*definition.Document, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: definition file", ErrMissingArgument)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	return definition.Parse(data)
}

// documentGraph builds an unsaved definition from a document, identifying
// steps by their status label.
func documentGraph(doc *definition.Document) *models.WorkflowDefinition {
	def := &models.WorkflowDefinition{Workflow: doc.Workflow()}

	for _, step := range doc.Steps {
		model := step.Model("")
		model.ID = step.Status
		def.Steps = append(def.Steps, model)
	}

	for i, transition := range doc.Transitions {
		model := transition.Model("", transition.From, transition.To)
		model.ID = fmt.Sprintf("transitions.%d", i)
		def.Transitions = append(def.Transitions, model)
	}

	return def
}

func printFindings(w io.Writer, findings []lint.Finding) {
	if len(findings) == 0 {
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, finding := range findings {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\n", finding.Severity, finding.Code, finding.Message)
	}

	_ = tw.Flush()
}
