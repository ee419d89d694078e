package admintools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/illustory/gallery/src/auditlog"
	"github.com/illustory/gallery/src/config"
	"github.com/illustory/gallery/src/db"
	"github.com/illustory/gallery/src/illustrations"
	"github.com/illustory/gallery/src/models"
	"github.com/illustory/gallery/src/oops"
	"github.com/illustory/gallery/src/raster"
	"github.com/illustory/gallery/src/storage"
	"github.com/illustory/gallery/src/website"
	"github.com/spf13/cobra"
)

var ErrNotAdmin = errors.New("operator is not an admin")

// Destructive commands name who is running them, and that person has to be
// on the admin list.
func authorizeOperator(cfg config.GalleryConfig, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return oops.New(ErrNotAdmin, "no operator given")
	}
	if !cfg.IsAdminEmail(email) {
		return oops.New(ErrNotAdmin, "%s", email)
	}
	return nil
}

func parseIllustrationID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0, oops.New(err, "%q is not an illustration id", s)
	}
	return id, nil
}

func init() {
	adminCommand := &cobra.Command{
		Use:   "admin",
		Short: "Miscellaneous admin commands",
	}
	website.WebsiteCommand.AddCommand(adminCommand)

	purgeLogsCommand := &cobra.Command{
		Use:   "purgelogs [illustration id]",
		Short: "Delete every download log entry for an illustration",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 1 {
				fmt.Printf("You must provide an illustration id.\n\n")
				cmd.Usage()
				os.Exit(1)
			}
			id, err := parseIllustrationID(args[0])
			if err != nil {
				fmt.Printf("ERROR: %v\n", err)
				os.Exit(1)
			}

			operator, _ := cmd.Flags().GetString("operator")
			if err := authorizeOperator(config.Config, operator); err != nil {
				fmt.Printf("ERROR: %v\n", err)
				os.Exit(1)
			}

			ctx := context.Background()
			conn := db.NewConn()
			defer conn.Close(ctx)

			deleted, err := auditlog.DeleteForIllustration(ctx, conn, id)
			if err != nil {
				panic(err)
			}

			fmt.Printf("Deleted %d download log entries for illustration %d (requested by %s).\n", deleted, id, operator)
		},
	}
	purgeLogsCommand.Flags().String("operator", "", "Email of the admin running this command")
	purgeLogsCommand.MarkFlagRequired("operator")
	adminCommand.AddCommand(purgeLogsCommand)

	addIllustrationCommand := &cobra.Command{
		Use:   "addillustration [svg file]",
		Short: "Upload an SVG and add it to the gallery",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 1 {
				fmt.Printf("You must provide an SVG file.\n\n")
				cmd.Usage()
				os.Exit(1)
			}

			title, _ := cmd.Flags().GetString("title")
			description, _ := cmd.Flags().GetString("description")
			hidden, _ := cmd.Flags().GetBool("hidden")
			render, _ := cmd.Flags().GetBool("render")
			scale, _ := cmd.Flags().GetFloat64("scale")

			svg, err := os.ReadFile(args[0])
			if err != nil {
				fmt.Printf("ERROR: couldn't read %s: %v\n", args[0], err)
				os.Exit(1)
			}

			input := illustrations.CreateInput{
				Title:       title,
				Description: description,
				Filename:    filepath.Base(args[0]),
				SVG:         svg,
				Hidden:      hidden,
			}
			if render {
				input.PNG, err = raster.SVGToPNG(svg, scale)
				if err != nil {
					fmt.Printf("ERROR: couldn't render a PNG version: %v\n", err)
					os.Exit(1)
				}
			}

			ctx := context.Background()
			store, err := storage.NewS3(ctx, config.Config.Backend)
			if err != nil {
				panic(err)
			}

			conn := db.NewConn()
			defer conn.Close(ctx)

			ill, err := illustrations.Create(ctx, conn, store, input)
			if err != nil {
				var invalid *illustrations.InvalidIllustrationError
				if errors.As(err, &invalid) {
					fmt.Printf("ERROR: %v\n", err)
					os.Exit(1)
				}
				panic(err)
			}

			fmt.Printf("Illustration added!\nID: %d\nTitle: %s\nObject: %s\n", ill.ID, ill.Title, ill.ImagePath)
			if render {
				fmt.Printf("PNG: %s\n", ill.PathFor(models.FormatPNG))
			}
		},
	}
	addIllustrationCommand.Flags().String("title", "", "Title shown in the gallery")
	addIllustrationCommand.Flags().String("description", "", "")
	addIllustrationCommand.Flags().Bool("hidden", false, "Add the illustration without making it downloadable")
	addIllustrationCommand.Flags().Bool("render", false, "Also upload a PNG rendering")
	addIllustrationCommand.Flags().Float64("scale", raster.DefaultScale, "Pixels per SVG unit for --render")
	addIllustrationCommand.MarkFlagRequired("title")
	adminCommand.AddCommand(addIllustrationCommand)

	setVisibleCommand := &cobra.Command{
		Use:   "setvisible [illustration id] [true/false]",
		Short: "Show or hide an illustration",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 2 {
				fmt.Printf("You must provide an illustration id and 'true' or 'false'.\n\n")
				cmd.Usage()
				os.Exit(1)
			}
			id, err := parseIllustrationID(args[0])
			if err != nil {
				fmt.Printf("ERROR: %v\n", err)
				os.Exit(1)
			}
			visible, err := strconv.ParseBool(args[1])
			if err != nil {
				fmt.Printf("ERROR: must be 'true' or 'false'\n")
				os.Exit(1)
			}

			ctx := context.Background()
			conn := db.NewConn()
			defer conn.Close(ctx)

			err = illustrations.SetVisible(ctx, conn, id, visible)
			if errors.Is(err, illustrations.ErrNotFound) {
				fmt.Printf("Illustration %d not found.\n", id)
				os.Exit(1)
			} else if err != nil {
				panic(err)
			}
			fmt.Printf("Illustration %d is now %s.\n", id, visibilityLabel(visible))
		},
	}
	adminCommand.AddCommand(setVisibleCommand)

	listCommand := &cobra.Command{
		Use:   "illustrations",
		Short: "List illustrations and how often they have been downloaded",
		Run: func(cmd *cobra.Command, args []string) {
			includeHidden, _ := cmd.Flags().GetBool("hidden")

			ctx := context.Background()
			conn := db.NewConn()
			defer conn.Close(ctx)

			ills, err := illustrations.List(ctx, conn, includeHidden)
			if err != nil {
				panic(err)
			}
			fmt.Print(formatIllustrationTable(ills))
		},
	}
	listCommand.Flags().Bool("hidden", false, "Include hidden illustrations")
	adminCommand.AddCommand(listCommand)

	downloadsCommand := &cobra.Command{
		Use:   "downloads [illustration id]",
		Short: "Show the most recent download log entries for an illustration",
		Run: func(cmd *cobra.Command, args []string) {
			if len(args) < 1 {
				fmt.Printf("You must provide an illustration id.\n\n")
				cmd.Usage()
				os.Exit(1)
			}
			id, err := parseIllustrationID(args[0])
			if err != nil {
				fmt.Printf("ERROR: %v\n", err)
				os.Exit(1)
			}
			limit, _ := cmd.Flags().GetInt("limit")

			ctx := context.Background()
			conn := db.NewConn()
			defer conn.Close(ctx)

			entries, err := auditlog.ListForIllustration(ctx, conn, id, limit)
			if err != nil {
				panic(err)
			}
			fmt.Print(formatDownloadTable(entries))
		},
	}
	downloadsCommand.Flags().Int("limit", 20, "How many entries to show")
	adminCommand.AddCommand(downloadsCommand)
}

func visibilityLabel(visible bool) string {
	if visible {
		return "visible"
	}
	return "hidden"
}
