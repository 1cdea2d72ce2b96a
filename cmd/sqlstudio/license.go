package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/sqlines/studio/internal/converter"
	"github.com/sqlines/studio/internal/license"
	"github.com/sqlines/studio/internal/ui"
)

var licenseCmd = &cobra.Command{
	Use:     "license",
	GroupID: "setup",
	Short:   "Check or register the converter license",
}

var licenseStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether the converter is licensed",
	Run: func(cmd *cobra.Command, args []string) {
		checker := newLicenseChecker()
		active, err := checker.IsActive(cmd.Context())
		if err != nil {
			fatal("%v", err)
		}
		fmt.Printf("License file: %s\n", checker.Path())
		if active {
			fmt.Printf("Status: %s\n", ui.RenderPass("active"))
		} else {
			fmt.Printf("Status: %s\n", ui.RenderWarn("evaluation"))
		}
	},
}

var licenseRegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Write registration details to license.txt",
	Long: `Write the registration name and number to license.txt and verify them
with the converter. Missing values are prompted for when running in a
terminal.`,
	Run: func(cmd *cobra.Command, args []string) {
		name, _ := cmd.Flags().GetString("name")
		number, _ := cmd.Flags().GetString("number")

		if name == "" || number == "" {
			if !ui.IsTerminal(os.Stdin) {
				fatal("--name and --number are required when not running in a terminal")
			}
			if err := promptRegistration(&name, &number); err != nil {
				fatal("%v", err)
			}
		}

		checker := newLicenseChecker()
		err := checker.Register(cmd.Context(), name, number)
		if errors.Is(err, license.ErrInvalidRegistration) {
			fatal("Invalid registration data")
		}
		if err != nil {
			fatal("%v", err)
		}
		fmt.Printf("%s Registered to %s\n", ui.RenderPass("✓"), name)
	},
}

func newLicenseChecker() *license.Checker {
	runner := converter.NewProcess(cfg.ConverterBinary(), logger.Named("converter"))
	return license.New(cfg.AppDir, runner, logger.Named("license"))
}

func promptRegistration(name, number *string) error {
	notEmpty := func(s string) error {
		if strings.TrimSpace(s) == "" {
			return errors.New("required")
		}
		return nil
	}
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Registration name").
				Value(name).
				Validate(notEmpty),
			huh.NewInput().
				Title("Registration number").
				Value(number).
				Validate(notEmpty),
		),
	)
	return form.Run()
}

func init() {
	licenseRegisterCmd.Flags().String("name", "", "Registration name")
	licenseRegisterCmd.Flags().String("number", "", "Registration number")

	licenseCmd.AddCommand(licenseStatusCmd, licenseRegisterCmd)
	rootCmd.AddCommand(licenseCmd)
}
