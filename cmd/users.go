package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/afoley587/coding-challenges-2025/usersync/internal/client"
	"github.com/afoley587/coding-challenges-2025/usersync/internal/collection"
	"github.com/afoley587/coding-challenges-2025/usersync/internal/config"
	"github.com/afoley587/coding-challenges-2025/usersync/internal/render"
	"github.com/afoley587/coding-challenges-2025/usersync/internal/user"
)

var (
	// api address
	apiURL     string
	apiTimeout time.Duration

	// TLS flags
	insecure      bool
	tlsCA         string
	tlsClientCert string
	tlsClientKey  string

	// list intents
	listPage  int
	listSorts []string

	// create/update fields
	userID     string
	firstName  string
	lastName   string
	email      string
	skills     []string
	registered string

	seedCount int
)

// Build DialConfig from the resolved configuration
func getDialConfig() client.DialConfig {
	return client.DialConfig{
		BaseURL:    cfg.APIURL,
		Timeout:    cfg.Timeout,
		Insecure:   cfg.TLS.Insecure,
		RootCA:     cfg.TLS.CAFile,
		ClientCert: cfg.TLS.CertFile,
		ClientKey:  cfg.TLS.KeyFile,
	}
}

// Wrapper to build a session against the remote API
func getSession() (*client.Session, error) {
	return client.NewClient(getDialConfig(), logger)
}

// Root users command
var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Interact with the remote users collection",
	Long:  "Commands for listing, creating, updating and deleting users through the users API.",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List one page of users",
	Long: "Fetch the collection and print one page of it.  Every --sort toggles like a click on a " +
		"column header: the first selects the field ascending, repeating the same field flips the order.",
	RunE: func(cmd *cobra.Command, args []string) error {
		intents := make([]collection.Event, 0, len(listSorts)+1)
		for _, raw := range listSorts {
			f, err := user.ParseField(raw)
			if err != nil {
				return err
			}
			intents = append(intents, collection.SetSorting{Field: f})
		}
		if cmd.Flags().Changed("page") {
			intents = append(intents, collection.SetPage{Page: listPage})
		}

		s, err := getSession()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		if _, err := s.Load(ctx); err != nil {
			return err
		}
		if err := s.Apply(ctx, intents...); err != nil {
			return err
		}
		return render.State(cmd.OutOrStdout(), s.State())
	},
}

var getCmd = &cobra.Command{
	Use:   "get",
	Short: "Get a user by ID",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getSession()
		if err != nil {
			return err
		}
		defer s.Close()

		if _, err := s.Load(cmd.Context()); err != nil {
			return err
		}
		u, err := s.Find(userID)
		if errors.Is(err, client.ErrUnknownUser) {
			fmt.Fprintln(cmd.OutOrStdout(), "User not found")
			return nil
		}
		if err != nil {
			return err
		}
		printUser(cmd, u)
		return nil
	},
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a new user",
	RunE: func(cmd *cobra.Command, args []string) error {
		draft := user.Draft{
			FirstName: firstName,
			LastName:  lastName,
			Email:     email,
			Skills:    cleanSkills(skills),
		}
		if registered != "" {
			t, err := user.ParseTimestamp(registered)
			if err != nil {
				return fmt.Errorf("invalid --registered: %w", err)
			}
			draft.RegistrationDate = t
		}

		s, err := getSession()
		if err != nil {
			return err
		}
		defer s.Close()

		u, err := s.Create(cmd.Context(), draft)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), "Created user: ")
		printUser(cmd, u)
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update fields of an existing user",
	Long:  "Fetch the user, replace the fields given as flags and send the whole record back.",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getSession()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx := cmd.Context()
		if _, err := s.Load(ctx); err != nil {
			return err
		}
		u, err := s.Find(userID)
		if err != nil {
			return err
		}
		if err := mergeFieldFlags(cmd.Flags(), &u); err != nil {
			return err
		}

		res, err := s.Update(ctx, u)
		if err != nil {
			return err
		}
		if res.Stale {
			logger.Warn("update raced with a newer edit of the same user")
		}
		fmt.Fprint(cmd.OutOrStdout(), "Updated user: ")
		printUser(cmd, res.Value)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a user by ID",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := getSession()
		if err != nil {
			return err
		}
		defer s.Close()

		id, err := s.Delete(cmd.Context(), userID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %s\n", id)
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create a batch of generated users concurrently",
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedCount <= 0 {
			return errors.New("--count must be positive")
		}

		s, err := getSession()
		if err != nil {
			return err
		}
		defer s.Close()

		created, err := s.Seed(cmd.Context(), seedCount, seedDraft)
		fmt.Fprintf(cmd.OutOrStdout(), "Created %d of %d users\n", len(created), seedCount)
		return err
	},
}

// mergeFieldFlags copies the field flags the caller actually set onto u.
func mergeFieldFlags(flags *pflag.FlagSet, u *user.User) error {
	if flags.Changed("first-name") {
		u.FirstName = firstName
	}
	if flags.Changed("last-name") {
		u.LastName = lastName
	}
	if flags.Changed("email") {
		u.Email = email
	}
	if flags.Changed("skill") {
		u.Skills = cleanSkills(skills)
	}
	if flags.Changed("registered") {
		t, err := user.ParseTimestamp(registered)
		if err != nil {
			return fmt.Errorf("invalid --registered: %w", err)
		}
		u.RegistrationDate = t
	}
	return nil
}

// cleanSkills trims entries and drops the blank ones.
func cleanSkills(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var (
	seedFirstNames = []string{"Ada", "Alan", "Barbara", "Dennis", "Edsger", "Frances", "Grace", "Ken", "Margaret", "Niklaus"}
	seedLastNames  = []string{"Lovelace", "Turing", "Liskov", "Ritchie", "Dijkstra", "Allen", "Hopper", "Thompson", "Hamilton", "Wirth"}
	seedSkills     = []string{"go", "sql", "redis", "kubernetes", "grpc", "terraform"}
)

func seedDraft(i int) user.Draft {
	first := seedFirstNames[i%len(seedFirstNames)]
	last := seedLastNames[(i/len(seedFirstNames))%len(seedLastNames)]
	tag := uuid.NewString()[:8]
	return user.Draft{
		FirstName: first,
		LastName:  last,
		Email:     strings.ToLower(fmt.Sprintf("%s.%s.%s@example.com", first, last, tag)),
		Skills:    []string{seedSkills[i%len(seedSkills)], seedSkills[(i+1)%len(seedSkills)]},
	}
}

func printUser(cmd *cobra.Command, u user.User) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s  %s  %s  [%s]  %s\n",
		u.ID, u.FullName(), u.Email, strings.Join(u.Skills, ", "), u.RegistrationDate.UTC().Format(time.RFC3339))
}

func addFieldFlags(c *cobra.Command) {
	c.Flags().StringVar(&firstName, "first-name", "", "First name of the user")
	c.Flags().StringVar(&lastName, "last-name", "", "Last name of the user")
	c.Flags().StringVarP(&email, "email", "e", "", "Email of the user")
	c.Flags().StringArrayVar(&skills, "skill", nil, "Skill of the user (repeatable)")
	c.Flags().StringVar(&registered, "registered", "", "Registration date (RFC3339), defaults to now")
}

func init() {

	usersCmd.PersistentFlags().StringVarP(&apiURL,
		"api-url", "a", "http://127.0.0.1:8080", "Base URL of the users API")

	usersCmd.PersistentFlags().DurationVar(&apiTimeout,
		"timeout", 30*time.Second, "Per-request timeout (0 disables)")

	usersCmd.PersistentFlags().BoolVar(
		&insecure, "insecure", false, "Skip TLS certificate verification")

	usersCmd.PersistentFlags().StringVar(
		&tlsCA, "tls-ca", "", "Path to root CA certificate")

	usersCmd.PersistentFlags().StringVar(
		&tlsClientCert, "tls-cert", "", "Path to client certificate for mTLS")

	usersCmd.PersistentFlags().StringVar(
		&tlsClientKey, "tls-key", "", "Path to client private key for mTLS")

	overrideWith(usersCmd.PersistentFlags(), "api-url", func(c *config.Config) { c.APIURL = apiURL })
	overrideWith(usersCmd.PersistentFlags(), "timeout", func(c *config.Config) { c.Timeout = apiTimeout })
	overrideWith(usersCmd.PersistentFlags(), "insecure", func(c *config.Config) { c.TLS.Insecure = insecure })
	overrideWith(usersCmd.PersistentFlags(), "tls-ca", func(c *config.Config) { c.TLS.CAFile = tlsCA })
	overrideWith(usersCmd.PersistentFlags(), "tls-cert", func(c *config.Config) { c.TLS.CertFile = tlsClientCert })
	overrideWith(usersCmd.PersistentFlags(), "tls-key", func(c *config.Config) { c.TLS.KeyFile = tlsClientKey })

	listCmd.Flags().IntVarP(&listPage, "page", "p", 1, "Page to show (1-based)")

	listCmd.Flags().StringArrayVarP(&listSorts, "sort", "s", nil,
		"Sort by field: id, firstName, lastName, email, skills, registrationDate (repeatable)")

	getCmd.Flags().StringVarP(&userID, "id", "i", "", "ID of the user to retrieve")
	_ = getCmd.MarkFlagRequired("id")

	addFieldFlags(createCmd)

	updateCmd.Flags().StringVarP(&userID, "id", "i", "", "ID of the user to update")
	_ = updateCmd.MarkFlagRequired("id")
	addFieldFlags(updateCmd)

	deleteCmd.Flags().StringVarP(&userID, "id", "i", "", "ID of the user to delete")
	_ = deleteCmd.MarkFlagRequired("id")

	seedCmd.Flags().IntVarP(&seedCount, "count", "n", 10, "Number of users to create")

	usersCmd.AddCommand(listCmd, getCmd, createCmd, updateCmd, deleteCmd, seedCmd)
	rootCmd.AddCommand(usersCmd)
}
