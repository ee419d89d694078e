package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/illustory/gallery/src/config"
	"github.com/illustory/gallery/src/models"
	"github.com/illustory/gallery/src/raster"
	"github.com/illustory/gallery/src/website"
	"github.com/spf13/cobra"
)

func init() {
	var (
		server   string
		format   string
		outDir   string
		stateDir string
		scale    float64
		limit    int
		onlyShow bool
	)

	fetchCommand := &cobra.Command{
		Use:   "fetch [illustration ids...]",
		Short: "Download illustrations from a gallery, subject to its daily limit",
		Run: func(cmd *cobra.Command, args []string) {
			f, ok := models.ParseFormat(format)
			if !ok {
				fmt.Printf("ERROR: unknown format %q (expected svg or png)\n", format)
				os.Exit(1)
			}

			o, err := New(Options{
				BaseURL:  server,
				StateDir: stateDir,
				OutDir:   outDir,
				Limit:    limit,
				Scale:    scale,
			})
			if err != nil {
				fmt.Printf("ERROR: %v\n", err)
				os.Exit(1)
			}

			ctx := context.Background()
			if onlyShow || len(args) == 0 {
				usage, err := o.Reconcile(ctx)
				if err != nil {
					fmt.Printf("ERROR: %v\n", err)
					os.Exit(1)
				}
				fmt.Printf("%d of %d downloads left today\n", usage.Remaining, usage.Limit)
				return
			}

			failed := false
			for _, arg := range args {
				id, err := strconv.ParseInt(arg, 10, 64)
				if err != nil {
					fmt.Printf("ERROR: %q is not an illustration id\n", arg)
					failed = true
					continue
				}

				dest, err := o.Download(ctx, id, f)
				var serverErr *ServerError
				switch {
				case err == nil:
					fmt.Printf("Saved %s\n", dest)
				case errors.Is(err, ErrLocalLimit):
					fmt.Println(err.Error())
					os.Exit(1)
				case errors.As(err, &serverErr):
					fmt.Printf("Illustration %d: %s\n", id, serverErr.Message)
					failed = true
				default:
					fmt.Printf("Illustration %d: %v\n", id, err)
					failed = true
				}
			}
			if failed {
				os.Exit(1)
			}
		},
	}

	defaultState := ".gallery"
	if dir, err := os.UserConfigDir(); err == nil {
		defaultState = filepath.Join(dir, "gallery")
	}

	fetchCommand.Flags().StringVar(&server, "server", config.Config.BaseUrl, "Base URL of the gallery")
	fetchCommand.Flags().StringVar(&format, "format", string(models.FormatPNG), "File format to save (svg or png)")
	fetchCommand.Flags().StringVarP(&outDir, "out", "o", ".", "Directory to save illustrations in")
	fetchCommand.Flags().StringVar(&stateDir, "state", defaultState, "Directory holding the identifier and local download count")
	fetchCommand.Flags().Float64Var(&scale, "scale", raster.DefaultScale, "Pixels per SVG unit when converting to PNG")
	fetchCommand.Flags().IntVar(&limit, "limit", config.DefaultDailyLimit, "Daily download limit to assume locally")
	fetchCommand.Flags().BoolVar(&onlyShow, "quota", false, "Only show how many downloads are left today")

	website.WebsiteCommand.AddCommand(fetchCommand)
}
