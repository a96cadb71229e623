package main

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/straye-as/deal-engine/internal/database"
	"github.com/straye-as/deal-engine/internal/domain"
	"github.com/straye-as/deal-engine/internal/repository"
	"github.com/straye-as/deal-engine/internal/service"
)

func openSequences() (*service.NumberSequenceService, error) {
	db, err := database.NewDatabase(&cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return service.NewNumberSequenceService(repository.NewNumberSequenceRepository(db), log), nil
}

func parseScope(companyArg, domainArg string) (uuid.UUID, domain.SequenceDomain, error) {
	companyID, err := uuid.Parse(companyArg)
	if err != nil {
		return uuid.Nil, "", fmt.Errorf("invalid company ID %q", companyArg)
	}
	seqDomain := domain.SequenceDomain(domainArg)
	if !seqDomain.IsValid() {
		return uuid.Nil, "", fmt.Errorf("unknown sequence domain %q", domainArg)
	}
	return companyID, seqDomain, nil
}

func newSequenceCmd() *cobra.Command {
	var year int

	sequenceCmd := &cobra.Command{
		Use:   "sequence",
		Short: "Inspect and seed document number sequences",
	}
	sequenceCmd.PersistentFlags().IntVar(&year, "year", time.Now().UTC().Year(), "calendar year of the sequence")

	showCmd := &cobra.Command{
		Use:   "show <company-id> <domain>",
		Short: "Print the last issued number of a sequence",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, seqDomain, err := parseScope(args[0], args[1])
			if err != nil {
				return err
			}
			sequences, err := openSequences()
			if err != nil {
				return err
			}
			current, err := sequences.GetCurrentSequence(cmd.Context(), companyID, seqDomain, year)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %d: last=%s next=%s\n",
				companyID, seqDomain, year,
				service.FormatSequence(current), service.FormatSequence(current+1))
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init <company-id> <domain> <value>",
		Short: "Raise a sequence so the next number is value+1",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			companyID, seqDomain, err := parseScope(args[0], args[1])
			if err != nil {
				return err
			}
			value, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid value %q", args[2])
			}
			sequences, err := openSequences()
			if err != nil {
				return err
			}
			if err := sequences.InitializeSequence(cmd.Context(), companyID, seqDomain, year, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sequence %s %s %d set to %s\n",
				companyID, seqDomain, year, service.FormatSequence(value))
			return nil
		},
	}

	var companyFilter string
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List sequences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var companyID *uuid.UUID
			if companyFilter != "" {
				id, err := uuid.Parse(companyFilter)
				if err != nil {
					return fmt.Errorf("invalid company ID %q", companyFilter)
				}
				companyID = &id
			}
			sequences, err := openSequences()
			if err != nil {
				return err
			}
			list, err := sequences.ListSequences(cmd.Context(), companyID)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "COMPANY\tDOMAIN\tYEAR\tLAST")
			for _, s := range list {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", s.CompanyID, s.Domain, s.Year, service.FormatSequence(s.LastSequence))
			}
			return w.Flush()
		},
	}
	listCmd.Flags().StringVar(&companyFilter, "company", "", "only list sequences of this company")

	sequenceCmd.AddCommand(showCmd, initCmd, listCmd)
	return sequenceCmd
}
