package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/npcchatter/backend/internal/domain/models"
	"github.com/npcchatter/backend/internal/infrastructure/monitoring"
	"github.com/npcchatter/backend/internal/infrastructure/persistence/postgres"
	"github.com/npcchatter/backend/pkg/constants"
)

type memberFlags struct {
	campaign string
	user     string
	role     string
}

func newMembersCommand(env *environment) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "members",
		Short: "Inspect and change campaign memberships",
		Long: `Memberships decide who may use a campaign's realtime channel. Changes take effect
on the next token request; tokens already issued stay valid until they expire.`,
	}
	cmd.AddCommand(newMembersListCommand(env), newMembersAddCommand(env), newMembersRemoveCommand(env))
	return cmd
}

func newMembersListCommand(env *environment) *cobra.Command {
	var f memberFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the members of a campaign",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, log, err := env.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			repo := postgres.NewMembershipRepository(db.DB(), monitoring.NewNoopMetrics(), log)
			members, err := repo.ListByCampaign(cmd.Context(), f.campaign)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "USER\tROLE")
			for _, m := range members {
				fmt.Fprintf(w, "%s\t%s\n", m.UserID, m.Role)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&f.campaign, "campaign", "", "campaign id")
	_ = cmd.MarkFlagRequired("campaign")
	return cmd
}

func newMembersAddCommand(env *environment) *cobra.Command {
	var f memberFlags
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a user to a campaign",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			role := constants.MemberRole(f.role)
			if role != constants.RolePlayer && role != constants.RoleDM {
				return fmt.Errorf("invalid role %q: want %s or %s", f.role, constants.RolePlayer, constants.RoleDM)
			}

			db, log, err := env.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			metrics := monitoring.NewNoopMetrics()
			if _, err := postgres.NewCampaignRepository(db.DB(), metrics, log).FindByID(cmd.Context(), f.campaign); err != nil {
				return err
			}
			created, err := postgres.NewMembershipRepository(db.DB(), metrics, log).Add(cmd.Context(), &models.CampaignMember{
				CampaignID: f.campaign,
				UserID:     f.user,
				Role:       role,
			})
			if err != nil {
				return err
			}

			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "added %s to %s as %s\n", f.user, f.campaign, role)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is already a member of %s\n", f.user, f.campaign)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&f.campaign, "campaign", "", "campaign id")
	cmd.Flags().StringVar(&f.user, "user", "", "user id (the identity provider's subject)")
	cmd.Flags().StringVar(&f.role, "role", string(constants.RolePlayer), "member role: player or dm")
	_ = cmd.MarkFlagRequired("campaign")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newMembersRemoveCommand(env *environment) *cobra.Command {
	var f memberFlags
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove a user from a campaign",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, log, err := env.openDB(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			removed, err := postgres.NewMembershipRepository(db.DB(), monitoring.NewNoopMetrics(), log).
				Remove(cmd.Context(), f.campaign, f.user)
			if err != nil {
				return err
			}
			if removed {
				fmt.Fprintf(cmd.OutOrStdout(), "removed %s from %s\n", f.user, f.campaign)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is not a member of %s\n", f.user, f.campaign)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&f.campaign, "campaign", "", "campaign id")
	cmd.Flags().StringVar(&f.user, "user", "", "user id")
	_ = cmd.MarkFlagRequired("campaign")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
