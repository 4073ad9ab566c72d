package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/bilalbayram/adlens/internal/auth"
)

func NewAuthCommand(runtime Runtime) *cobra.Command {
	return newGroupCommand("auth", "Access token profile management",
		newAuthSetCommand(runtime),
		newAuthListCommand(runtime),
		newAuthRemoveCommand(runtime),
	)
}

func newAuthSetCommand(runtime Runtime) *cobra.Command {
	var (
		profile      string
		token        string
		appSecret    string
		appID        string
		graphVersion string
		makeDefault  bool
	)
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Store an access token in the keychain and bind it to a profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			const commandName = "adlens auth set"
			if profile == "" {
				profile = runtime.ProfileName()
			}
			if strings.TrimSpace(profile) == "" {
				return writeCommandError(cmd, runtime, commandName, inputErrorf("profile is required (--profile or global --profile)"))
			}
			env, err := runtime.environment()
			if err != nil {
				return writeCommandError(cmd, runtime, commandName, err)
			}
			defer func() { _ = env.logger.Sync() }()

			if err := env.authService().SetProfile(auth.SetProfileInput{
				Profile:      profile,
				Token:        token,
				AppSecret:    appSecret,
				AppID:        appID,
				GraphVersion: graphVersion,
				MakeDefault:  makeDefault,
			}); err != nil {
				return writeCommandError(cmd, runtime, commandName, err)
			}
			return writeSuccess(cmd, runtime, commandName, map[string]any{
				"status":  "ok",
				"profile": profile,
			}, nil)
		},
	}
	cmd.Flags().StringVar(&profile, "profile", "", "Profile name")
	cmd.Flags().StringVar(&token, "token", "", "Graph API access token")
	cmd.Flags().StringVar(&appSecret, "app-secret", "", "App secret used for appsecret_proof")
	cmd.Flags().StringVar(&appID, "app-id", "", "App ID")
	cmd.Flags().StringVar(&graphVersion, "graph-version", "", "Graph API version, e.g. v25.0")
	cmd.Flags().BoolVar(&makeDefault, "default", false, "Make this the default profile")
	mustMarkFlagRequired(cmd, "token")
	return cmd
}

func newAuthListCommand(runtime Runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured profiles",
		RunE: func(cmd *cobra.Command, _ []string) error {
			const commandName = "adlens auth list"
			env, err := runtime.environment()
			if err != nil {
				return writeCommandError(cmd, runtime, commandName, err)
			}
			profiles, err := env.authService().ListProfiles()
			if err != nil {
				return writeCommandError(cmd, runtime, commandName, err)
			}
			rows := make([]map[string]any, 0, len(profiles))
			for _, profile := range profiles {
				rows = append(rows, map[string]any{
					"name":           profile.Name,
					"graph_version":  profile.GraphVersion,
					"app_id":         profile.AppID,
					"has_app_secret": profile.HasAppSecret,
					"default":        profile.Default,
				})
			}
			return writeSuccess(cmd, runtime, commandName, rows, map[string]any{"count": len(rows)})
		},
	}
}

func newAuthRemoveCommand(runtime Runtime) *cobra.Command {
	var profile string
	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Delete a profile and its keychain secrets",
		RunE: func(cmd *cobra.Command, _ []string) error {
			const commandName = "adlens auth remove"
			if profile == "" {
				profile = runtime.ProfileName()
			}
			if strings.TrimSpace(profile) == "" {
				return writeCommandError(cmd, runtime, commandName, inputErrorf("profile is required (--profile or global --profile)"))
			}
			env, err := runtime.environment()
			if err != nil {
				return writeCommandError(cmd, runtime, commandName, err)
			}
			if err := env.authService().RemoveProfile(profile); err != nil {
				return writeCommandError(cmd, runtime, commandName, err)
			}
			return writeSuccess(cmd, runtime, commandName, map[string]any{
				"status":  "removed",
				"profile": profile,
			}, nil)
		},
	}
	cmd.Flags().StringVar(&profile, "profile", "", "Profile name")
	return cmd
}
