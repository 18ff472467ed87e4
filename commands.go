package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"resolvarr/models"
	"resolvarr/services/debrid"
)

func backendNames(types []models.BackendType) []string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return names
}

func credentialRef(id string) string {
	return "backend/" + id
}

func runBackendsCommand(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backends",
		Short: "Manage configured debrid backends",
	}
	cmd.AddCommand(
		runBackendsListCommand(configPath),
		runBackendsHealthCommand(configPath),
		runBackendsAddCommand(configPath),
		runBackendsRemoveCommand(configPath),
	)
	return cmd
}

func runBackendsListCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored backend configs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			configs, err := a.configs.ListBackendConfigs(cmd.Context())
			if err != nil {
				return err
			}
			loaded := make(map[models.BackendType]bool)
			for _, t := range a.registry.AvailableBackends() {
				loaded[t] = true
			}
			if len(configs) == 0 {
				cmd.Println("No backends configured.")
				return nil
			}
			for _, cfg := range configs {
				state := "inactive"
				switch {
				case cfg.Active && loaded[cfg.Type]:
					state = "loaded"
				case cfg.Active:
					state = "unavailable"
				}
				cmd.Printf("%-36s  %-12s  priority=%-3d  %s\n", cfg.ID, cfg.Type.DisplayName(), cfg.Priority, state)
			}
			return nil
		},
	}
}

func runBackendsHealthCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Validate credentials of every loaded backend",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, h := range a.health.Check(cmd.Context()) {
				status := "ok"
				if !h.Valid {
					status = "invalid: " + h.ErrorKind
				}
				line := fmt.Sprintf("%-12s  priority=%-3d  %s", h.DisplayName, h.Priority, status)
				if h.Account != nil {
					line += fmt.Sprintf("  user=%s premium=%t", h.Account.Username, h.Account.IsPremium)
				}
				cmd.Println(line)
			}
			return nil
		},
	}
}

func runBackendsAddCommand(configPath *string) *cobra.Command {
	var (
		backend    string
		credential string
		id         string
		priority   int
		inactive   bool
		validate   bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Store a backend credential and config",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, ok := models.ParseBackendType(backend)
			if !ok {
				return fmt.Errorf("unknown backend %q (one of %s)", backend, strings.Join(backendNames(models.AllBackendTypes()), ", "))
			}
			if strings.TrimSpace(credential) == "" {
				return errors.New("--credential is required")
			}

			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if validate {
				client, err := debrid.NewBackend(t, credential, clientOptions(a.settings.Backends, a.metrics)(t))
				if err != nil {
					return err
				}
				valid, err := client.ValidateToken(cmd.Context())
				if err != nil {
					return fmt.Errorf("credential rejected: %w", err)
				}
				if !valid {
					return errors.New("credential rejected")
				}
			}

			if id == "" {
				id = uuid.NewString()
			}
			ref := credentialRef(id)
			if err := a.secrets.SetSecret(cmd.Context(), credential, ref); err != nil {
				return err
			}
			if err := a.configs.SaveBackendConfig(cmd.Context(), models.BackendConfig{
				ID:            id,
				Type:          t,
				CredentialRef: ref,
				Active:        !inactive,
				Priority:      priority,
			}); err != nil {
				return err
			}
			cmd.Printf("Saved %s backend %s\n", t.DisplayName(), id)
			return nil
		},
	}
	cmd.Flags().StringVar(&backend, "type", "", "backend type ("+strings.Join(backendNames(models.AllBackendTypes()), ", ")+")")
	cmd.Flags().StringVar(&credential, "credential", "", "API key or token (easynews: user:pass)")
	cmd.Flags().StringVar(&id, "id", "", "config id; reusing one updates it")
	cmd.Flags().IntVar(&priority, "priority", 0, "lower is preferred")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "store without activating")
	cmd.Flags().BoolVar(&validate, "validate", true, "check the credential before saving")
	_ = cmd.MarkFlagRequired("type")
	return cmd
}

func runBackendsRemoveCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Delete a backend config and its credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg, err := a.configs.GetBackendConfig(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := a.configs.DeleteBackendConfig(cmd.Context(), cfg.ID); err != nil {
				return err
			}
			if err := a.secrets.DeleteSecret(cmd.Context(), cfg.CredentialRef); err != nil {
				return err
			}
			cmd.Printf("Removed %s backend %s\n", cfg.Type.DisplayName(), cfg.ID)
			return nil
		},
	}
}

func runCheckCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check <hash>...",
		Short: "Ask every backend whether the torrents are cached",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			hits, err := a.registry.CheckCacheAcrossServices(cmd.Context(), args)
			if err != nil {
				return err
			}
			hashes := make([]string, 0, len(hits))
			for h := range hits {
				hashes = append(hashes, h)
			}
			sort.Strings(hashes)
			for _, h := range hashes {
				hit := hits[h]
				line := fmt.Sprintf("%s  %-10s", h, hit.Status.State)
				if hit.Backend != "" {
					line += "  " + hit.Backend.DisplayName()
				}
				if hit.Status.FileName != "" {
					line += "  " + hit.Status.FileName
				}
				cmd.Println(line)
			}
			return nil
		},
	}
}

func runResolveCommand(configPath *string) *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "resolve <hash>",
		Short: "Resolve an info-hash into a stream URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var preferred models.BackendType
			if backend != "" {
				t, ok := models.ParseBackendType(backend)
				if !ok {
					return fmt.Errorf("unknown backend %q", backend)
				}
				preferred = t
			}

			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			info, err := a.registry.ResolveStream(cmd.Context(), args[0], preferred)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "", "preferred backend")
	return cmd
}
