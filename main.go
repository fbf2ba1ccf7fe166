package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"
)

const (
	exitOK        = 0
	exitFailure   = 1
	exitForbidden = 2
)

const instructions = `--------------------------------------------------------------------------------
This program backs up all the files in a directory to an S3 bucket.
Only files that are new or modified since the last backup are uploaded.
You will be asked for your AWS Access Key ID, AWS Secret Access Key and the
bucket name. A bucket that does not exist yet will be created.
--------------------------------------------------------------------------------`

func main() {
	os.Exit(run())
}

func run() int {
	configFilePath := flag.String("configfile", "", "Configuration File Path")
	sourceDir := flag.String("dir", "", "Directory to back up (overrides config)")
	bucket := flag.String("bucket", "", "Destination bucket (overrides config)")
	dryRun := flag.Bool("dry-run", false, "Log what would be uploaded without uploading")
	nonInteractive := flag.Bool("non-interactive", false, "Never prompt; fail if config is incomplete")
	flag.Parse()

	var configFiles []string
	if *configFilePath != "" {
		configFiles = append(configFiles, *configFilePath)
	}
	appConfig, configErr := LoadConfig(configFiles...)
	if configErr != nil {
		fmt.Fprintln(os.Stderr, configErr)
		return exitFailure
	}
	if *sourceDir != "" {
		appConfig.SourceFolder = *sourceDir
	}
	if *bucket != "" {
		appConfig.Bucket = *bucket
	}
	appConfig.DryRun = appConfig.DryRun || *dryRun
	appConfig.NonInteractive = appConfig.NonInteractive || *nonInteractive

	if err := appConfig.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %s\n", err)
		return exitFailure
	}
	setupLogging(appConfig.LogLevel)

	log.Info("Effective configuration:")
	for _, line := range appConfig.ConfigStringArray() {
		log.Info(line)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var prompter Prompter
	if appConfig.NonInteractive {
		prompter = NewScriptedPrompter(os.Stdout)
	} else {
		fmt.Println(instructions)
		prompter = NewTerminalPrompter(os.Stdin, os.Stdout)
	}

	setup := NewSetup(NewS3Session(appConfig), appConfig.Region)
	setup.Preload(ctx, appConfig.Credentials(), appConfig.Bucket, prompter)
	if err := RunSetup(ctx, setup, prompter); err != nil {
		fmt.Printf("Error: Setup did not complete: %s\n", err)
		return exitFailure
	}

	var notifier Notifier
	if appConfig.SNSTopic != "" {
		var notifierErr error
		notifier, notifierErr = NewSNSNotifier(ctx, appConfig, setup.Credentials)
		if notifierErr != nil {
			log.Warn(fmt.Sprintf("SNS notifications disabled: %s", notifierErr))
			notifier = nil
		}
	}

	syncer, err := NewSyncer(setup.Client, os.DirFS(appConfig.SourceFolder), appConfig.SyncOptions(setup.Bucket), notifier)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitFailure
	}

	displayRoot, absErr := filepath.Abs(appConfig.SourceFolder)
	if absErr != nil {
		displayRoot = appConfig.SourceFolder
	}
	fmt.Printf("\nBacking up your files from '%s'...\n", displayRoot)

	if appConfig.Interval > 0 {
		lastResults, scheduleErr := scheduleSync(ctx, syncer, appConfig.Interval)
		return finish(os.Stdout, setup.Bucket, lastResults, scheduleErr)
	}

	results, syncErr := syncer.Run(ctx)
	return finish(os.Stdout, setup.Bucket, results, syncErr)
}

func setupLogging(level string) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetOutput(os.Stderr)
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	log.SetLevel(lvl)
}

// finish prints the outcome of a run and picks the exit code.
func finish(w io.Writer, bucket string, results *ResultMap, runErr error) int {
	switch {
	case errors.Is(runErr, ErrBucketForbidden):
		fmt.Fprintf(w, "Error: The bucket '%s' has forbidden access. Please try a different bucket!\n", bucket)
		return exitForbidden
	case runErr != nil:
		log.Error(runErr)
		fmt.Fprintln(w, "Error: There was an issue backing up your files, please reload the program")
		return exitFailure
	}

	fmt.Fprintf(w, "\n%s\n", results.Summary())
	if failures := results.Failures(); len(failures) != 0 {
		for _, failure := range failures {
			fmt.Fprintf(w, "  - %s %s: %s\n", failure.Action, failure.Key, failure.Error)
		}
		fmt.Fprintf(w, "Error: %d files could not be backed up, please reload the program\n", len(failures))
		return exitFailure
	}

	fmt.Fprintln(w, "\nSuccess! Your files have been backed up!")
	return exitOK
}
