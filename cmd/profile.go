// SPDX-License-Identifier: MIT
package cmd

import (
	"errors"
	"fmt"
	"io"

	"biosignal/internal/persistence"
	"biosignal/internal/profile"
	"biosignal/internal/spectrum"

	"github.com/spf13/cobra"
)

func newProfileCommand() *cobra.Command {
	var catalogPath string

	profileCmd := &cobra.Command{
		Use:   "profile",
		Short: "Inspect a profile catalog and apply it to saved spectra",
	}
	profileCmd.PersistentFlags().StringVarP(&catalogPath, "file", "f", "profiles.yaml",
		"Profile catalog (YAML)")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the profiles in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := profile.Load(catalogPath)
			if err != nil {
				return err
			}
			return listProfiles(cmd.OutOrStdout(), catalog)
		},
	}

	var names []string
	applyCmd := &cobra.Command{
		Use:   "apply SPECTRUM...",
		Short: "Resample saved spectra onto catalog profiles",
		Long: "Resample each saved spectrum onto the selected profiles (all of them by default).\n" +
			"Results are written next to the input in the same encoding, named after the\n" +
			"first segment of the input and of the profile, e.g. s01_run.spectrum.json with\n" +
			"profile alpha_band becomes s01_alpha.spectrum.json.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			catalog, err := profile.Load(catalogPath)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				names = catalog.Names()
			}
			profiles := make([]spectrum.Profile, 0, len(names))
			for _, name := range names {
				p, err := catalog.Get(name)
				if err != nil {
					return err
				}
				profiles = append(profiles, p)
			}

			var errs []error
			for _, path := range args {
				if err := applyProfiles(cmd.OutOrStdout(), path, profiles); err != nil {
					errs = append(errs, err)
				}
			}
			return errors.Join(errs...)
		},
	}
	applyCmd.Flags().StringSliceVarP(&names, "name", "n", nil,
		"Profiles to apply (repeatable, default all)")

	profileCmd.AddCommand(listCmd, applyCmd)
	return profileCmd
}

func listProfiles(w io.Writer, catalog *profile.Catalog) error {
	for _, name := range catalog.Names() {
		p, err := catalog.Get(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%-16s %g - %g Hz, step %g Hz\n", p.Name, p.MinFrequency, p.MaxFrequency, p.FrequencyStep)
	}
	return nil
}

// applyProfiles writes one profiled spectrum per profile that the input
// covers. Profiles outside its range are reported and skipped.
func applyProfiles(w io.Writer, path string, profiles []spectrum.Profile) error {
	s, err := persistence.Load(path)
	if err != nil {
		return err
	}
	store, _, err := persistence.StoreFor(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%s: %s, %d bins\n", path, s.FFTRangeLabel(), s.FFTSize())

	for _, p := range profiles {
		ps, err := s.ApplyProfile(p)
		if err != nil {
			fmt.Fprintf(w, "  %s: skipped: %v\n", p.Name, err)
			continue
		}
		_, base, _ := persistence.StoreFor(persistence.ProfiledFilename(path, p.Name))
		out, err := store.Save(ps, base)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %s: %s, %d bins -> %s\n", p.Name, ps.FFTRangeLabel(), ps.FFTSize(), out)
	}
	return nil
}
