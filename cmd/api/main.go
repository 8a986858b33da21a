package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// @title Treatment Plans API
// @version 1.0
// @description Planes de tratamiento, agenda de tomas y recetas digitalizadas.
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "api",
		Short:         "Servicio de planes de tratamiento",
		SilenceUsage:  true,
		SilenceErrors: true,
		// sin subcomando => serve
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Levanta el API HTTP y el worker de OCR",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runServe(cmd.Context())
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Aplica las migraciones pendientes",
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMigrate(cmd.Context())
			},
		},
		newCatalogCmd(),
	)
	return root
}

func newCatalogCmd() *cobra.Command {
	var summary, posology string

	add := &cobra.Command{
		Use:   "add <nombre>",
		Short: "Registra o actualiza un medicamento del catálogo",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogAdd(cmd.Context(), cmd.OutOrStdout(), args[0], summary, posology)
		},
	}
	add.Flags().StringVar(&summary, "summary", "", "descripción breve")
	add.Flags().StringVar(&posology, "posology", "", "posología de referencia")

	catalog := &cobra.Command{
		Use:   "catalog",
		Short: "Catálogo de medicamentos",
	}
	catalog.AddCommand(add)
	return catalog
}
