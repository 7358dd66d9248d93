package main

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/kekelo17/Swift-Meds-sub000/internal/domain"
	"github.com/kekelo17/Swift-Meds-sub000/internal/service"
)

const configName = ".swiftmeds"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "✗ %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "swiftmeds",
		Short:         "Command line client for the SwiftMeds API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return loadSettings()
		},
	}
	root.PersistentFlags().String("api", "", "API base URL (env SWIFTMEDS_API_URL)")
	_ = viper.BindPFlag("api_url", root.PersistentFlags().Lookup("api"))

	root.AddCommand(loginCmd(), signupCmd(), reservationsCmd(), inventoryCmd(), pharmaciesCmd())
	return root
}

// loadSettings reads ~/.swiftmeds.yaml and SWIFTMEDS_* variables
func loadSettings() error {
	viper.SetDefault("api_url", "http://localhost:8080")
	viper.SetEnvPrefix("swiftmeds")
	viper.AutomaticEnv()

	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	viper.AddConfigPath(home)
	viper.SetConfigName(configName)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}
	return nil
}

func saveToken(token string) error {
	viper.Set("token", token)
	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}
	return viper.WriteConfigAs(filepath.Join(home, configName+".yaml"))
}

func client() *apiClient {
	return newAPIClient(viper.GetString("api_url"), viper.GetString("token"))
}

func loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			var result service.AuthResult
			err := client().do(http.MethodPost, "/api/auth/signin", map[string]string{"email": email, "password": password}, &result)
			if err != nil {
				return err
			}
			if err := saveToken(result.Token); err != nil {
				return err
			}
			fmt.Printf("✓ Logged in as %s (%s)\n", result.User.Email, result.User.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func signupCmd() *cobra.Command {
	var in service.SignupInput
	var role string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Role = domain.Role(role)
			var result service.AuthResult
			if err := client().do(http.MethodPost, "/api/auth/signup", in, &result); err != nil {
				return err
			}
			if err := saveToken(result.Token); err != nil {
				return err
			}
			fmt.Printf("✓ Account created: %s (%s)\n", result.User.Email, result.User.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Email, "email", "", "account email")
	cmd.Flags().StringVar(&in.Password, "password", "", "password (at least 8 characters)")
	cmd.Flags().StringVar(&in.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleClient), "client or pharmacist")
	cmd.Flags().StringVar(&in.LicenseNumber, "license", "", "pharmacist license number")
	cmd.Flags().StringVar(&in.PharmacyName, "pharmacy-name", "", "register a new pharmacy (pharmacists)")
	cmd.Flags().StringVar(&in.PharmacyAddress, "pharmacy-address", "", "address of the new pharmacy")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func reservationsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "reservations", Aliases: []string{"res"}, Short: "Manage reservations"}

	var status, search string
	var page int
	list := &cobra.Command{
		Use:   "list",
		Short: "List reservations visible to you",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if status != "" {
				q.Set("status", status)
			}
			if search != "" {
				q.Set("search", search)
			}
			if page > 0 {
				q.Set("page", strconv.Itoa(page))
			}
			var result domain.ReservationPage
			if err := client().do(http.MethodGet, "/api/reservations?"+q.Encode(), nil, &result); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tPATIENT\tPHARMACY\tMEDICATION\tQTY\tSTATUS\tTOTAL\tEXPIRES")
			for _, r := range result.Reservations {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%d\t%s\t%.2f\t%s\n",
					r.ID, r.PatientName, r.PharmacyName, r.MedicationName, r.Quantity, r.Status, r.TotalAmount,
					r.ExpiresAt.Local().Format("2006-01-02 15:04"))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Printf("page %d of %d (%d total)\n", result.Page, result.TotalPages, result.Total)
			return nil
		},
	}
	list.Flags().StringVar(&status, "status", "", "filter by status")
	list.Flags().StringVar(&search, "search", "", "search patient, pharmacy or medication")
	list.Flags().IntVar(&page, "page", 1, "page number")

	var in service.CreateReservationInput
	create := &cobra.Command{
		Use:   "create",
		Short: "Reserve a medication",
		RunE: func(cmd *cobra.Command, args []string) error {
			var r domain.Reservation
			if err := client().do(http.MethodPost, "/api/reservations", in, &r); err != nil {
				return err
			}
			fmt.Printf("✓ Reservation %d created, total %.2f, expires %s\n", r.ID, r.TotalAmount, r.ExpiresAt.Local().Format("2006-01-02 15:04"))
			return nil
		},
	}
	create.Flags().Int64Var(&in.PharmacyID, "pharmacy", 0, "pharmacy id")
	create.Flags().Int64Var(&in.MedicationID, "medication", 0, "medication id")
	create.Flags().StringVar(&in.PatientName, "patient", "", "patient name")
	create.Flags().IntVar(&in.Quantity, "quantity", 1, "quantity")
	create.Flags().StringVar(&in.ClientUserID, "client", "", "client user id (pharmacists and admins)")
	_ = create.MarkFlagRequired("pharmacy")
	_ = create.MarkFlagRequired("medication")
	_ = create.MarkFlagRequired("patient")

	cmd.AddCommand(list, create,
		setStatusCmd("cancel", domain.StatusCancelled),
		setStatusCmd("confirm", domain.StatusConfirmed),
		setStatusCmd("fulfill", domain.StatusFulfilled),
	)
	return cmd
}

func setStatusCmd(name string, status domain.ReservationStatus) *cobra.Command {
	return &cobra.Command{
		Use:   name + " <id>",
		Short: "Mark a reservation " + string(status),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var r domain.Reservation
			err = client().do(http.MethodPut, fmt.Sprintf("/api/reservations/%d", id), domain.ReservationPatch{Status: &status}, &r)
			if err != nil {
				return err
			}
			fmt.Printf("✓ Reservation %d is %s\n", r.ID, r.Status)
			return nil
		},
	}
}

func inventoryCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "inventory", Short: "Inspect and adjust pharmacy stock"}

	show := &cobra.Command{
		Use:   "show <pharmacy-id>",
		Short: "Show stock levels of a pharmacy",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var entries []domain.InventoryEntry
			if err := client().do(http.MethodGet, fmt.Sprintf("/api/pharmacies/%d/inventory", id), nil, &entries); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "MEDICATION\tNAME\tQUANTITY\tUPDATED")
			for _, e := range entries {
				name := ""
				if e.Medication != nil {
					name = e.Medication.Name
				}
				fmt.Fprintf(tw, "%d\t%s\t%d\t%s\n", e.MedicationID, name, e.Quantity, e.UpdatedAt.Local().Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}

	set := &cobra.Command{
		Use:   "set <pharmacy-id> <medication-id> <quantity>",
		Short: "Set the stock of a medication",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			pharmacyID, err := parseID(args[0])
			if err != nil {
				return err
			}
			medicationID, err := parseID(args[1])
			if err != nil {
				return err
			}
			qty, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("invalid quantity %q", args[2])
			}
			var e domain.InventoryEntry
			path := fmt.Sprintf("/api/pharmacies/%d/inventory/%d", pharmacyID, medicationID)
			if err := client().do(http.MethodPut, path, map[string]int{"quantity": qty}, &e); err != nil {
				return err
			}
			fmt.Printf("✓ Pharmacy %d now holds %d of medication %d\n", e.PharmacyID, e.Quantity, e.MedicationID)
			return nil
		},
	}

	cmd.AddCommand(show, set)
	return cmd
}

func pharmaciesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "pharmacies", Short: "Browse and moderate pharmacies"}

	var all bool
	var search string
	list := &cobra.Command{
		Use:   "list",
		Short: "List pharmacies",
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{}
			if !all {
				q.Set("approved", "true")
			}
			if search != "" {
				q.Set("search", search)
			}
			var pharmacies []domain.Pharmacy
			if err := client().do(http.MethodGet, "/api/pharmacies?"+q.Encode(), nil, &pharmacies); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tADDRESS\tSTATUS\tRATING")
			for _, p := range pharmacies {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.1f\n", p.ID, p.Name, p.Address, p.Status, p.AverageRating)
			}
			return tw.Flush()
		},
	}
	list.Flags().BoolVar(&all, "all", false, "include pending and rejected pharmacies")
	list.Flags().StringVar(&search, "search", "", "search by name or address")

	cmd.AddCommand(list, decideCmd("approve"), decideCmd("reject"))
	return cmd
}

func decideCmd(action string) *cobra.Command {
	return &cobra.Command{
		Use:   action + " <id>",
		Short: strings.ToUpper(action[:1]) + action[1:] + " a pending pharmacy (admin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var p domain.Pharmacy
			if err := client().do(http.MethodPut, fmt.Sprintf("/api/pharmacies/%d/%s", id, action), nil, &p); err != nil {
				return err
			}
			fmt.Printf("✓ %s is %s\n", p.Name, p.Status)
			return nil
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}
