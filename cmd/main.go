package main

import (
	"bytes"
	"context"
	"image"
	"os"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ghaderi-m/comfyui-api/internal/comfyui"
	"github.com/ghaderi-m/comfyui-api/internal/config"
	"github.com/ghaderi-m/comfyui-api/internal/storage"
	"github.com/ghaderi-m/comfyui-api/internal/workflow"

	_ "image/jpeg"
	_ "image/png"
)

type options struct {
	workflowPath string
	promptText   string
	server       string
	save         bool
	noSave       bool
	uploadImage  string
}

func main() {
	// .env is optional
	_ = godotenv.Load()

	cfg := config.Load()
	config.ConfigureGlobalLogger()

	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "comfyui-api",
		Short:         "Submit a workflow to a ComfyUI server and collect the result images",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cfg, opts)
		},
	}

	flags := rootCmd.Flags()
	flags.StringVar(&opts.workflowPath, "workflow", cfg.WorkflowPath, "Path to workflow JSON file")
	flags.StringVar(&opts.promptText, "prompt", "", "Prompt text to inject into the workflow")
	flags.StringVar(&opts.server, "server", cfg.ServerAddress, "ComfyUI server address (host:port)")
	flags.BoolVar(&opts.save, "save", cfg.SaveImages, "Save images to disk")
	flags.BoolVar(&opts.noSave, "no-save", false, "Do not save images")
	flags.StringVar(&opts.uploadImage, "upload-image", "", "Path or URL of image to upload and inject into workflow")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		logrus.Errorf("Execution failed: %v", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, opts *options) error {
	doc, err := workflow.Load(opts.workflowPath)
	if err != nil {
		return err
	}

	client := comfyui.NewClient(opts.server)

	if err := client.HealthCheck(ctx); err != nil {
		logrus.Warnf("ComfyUI health check failed: %v", err)
	}

	if opts.uploadImage != "" {
		name, err := client.UploadImage(ctx, opts.uploadImage)
		if err != nil {
			return err
		}
		if err := workflow.PatchLoadImage(doc, name); err != nil {
			return err
		}
	}

	if opts.promptText != "" {
		if err := workflow.PatchPromptText(doc, opts.promptText); err != nil {
			return err
		}
	}

	images, promptID, err := client.Run(ctx, doc)
	if err != nil {
		return err
	}

	if opts.save && !opts.noSave {
		saver := storage.NewSaver(storage.DefaultBaseDir, newUploader(cfg.S3))
		if err := saver.SaveAll(ctx, images, promptID); err != nil {
			return err
		}
	}

	describeImages(images)
	return nil
}

// newUploader returns an S3 uploader when uploads are enabled and fully
// configured, nil otherwise. Incomplete config is never fatal.
func newUploader(cfg config.S3Config) storage.Uploader {
	if !cfg.Enabled {
		return nil
	}
	if !cfg.IsComplete() {
		logrus.Warn("S3 upload enabled but configuration incomplete, skipping uploads")
		return nil
	}
	return storage.NewS3Uploader(cfg)
}

// describeImages logs a summary per result image. Stands in for the
// original's local display window, which a CLI has no equivalent for.
func describeImages(images map[string][][]byte) {
	for nodeID, list := range images {
		for idx, data := range list {
			entry := logrus.WithFields(logrus.Fields{
				"node":  nodeID,
				"index": idx + 1,
				"bytes": len(data),
			})
			if imgCfg, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
				entry = entry.WithFields(logrus.Fields{
					"format": format,
					"width":  imgCfg.Width,
					"height": imgCfg.Height,
				})
			}
			entry.Info("Result image")
		}
	}
}
