// Copyright (c) 2022-present archrun authors

package main

import (
	"fmt"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"sort"
	"syscall"

	"github.com/dustin/go-humanize"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sytelus/archrun/dataroot"
	"github.com/sytelus/archrun/docker"
	"github.com/sytelus/archrun/launch"
	"github.com/sytelus/archrun/spec"
)

var catalogPath string
var debug bool

func main() {

	rootCmd := &cobra.Command{
		Use:   "archrun",
		Short: "launch profiles for training and search experiments",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if debug {
				log.SetLevel(log.DebugLevel)
			}
			log.SetFormatter(&Formatter{})
		},
	}
	rootCmd.PersistentFlags().StringVarP(&catalogPath, "catalog", "c", "archrun.yaml", "profile catalog file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "list the profiles in the catalog",
		Run: func(cmd *cobra.Command, args []string) {
			c := catalog()
			for _, p := range c.Profiles {
				fmt.Printf("%-40s %s\n", p.Name, p.EntryPoint)
			}
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "show [profile]",
		Short: "print the resolved command line of a profile",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			c := catalog()
			s, err := launch.NewSession(c, args[0])
			if err != nil {
				log.Fatal(err)
			}
			fmt.Println("workdir:", s.Workdir)
			keys := []string{}
			for k := range s.Profile.Env {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("env:     %s=%s\n", k, s.Profile.Env[k])
			}
			fmt.Println("command:")
			for _, a := range s.Command() {
				fmt.Println("  ", a)
			}
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "check catalog invariants and entry points",
		Run: func(cmd *cobra.Command, args []string) {
			c := catalog()
			failed := false
			for i := range c.Profiles {
				_, err := c.ResolveEntryPoint(&c.Profiles[i])
				if err != nil {
					log.Error(err)
					failed = true
				}
			}
			if failed {
				os.Exit(1)
			}
			fmt.Printf("%d profiles ok\n", len(c.Profiles))
		},
	})

	rootCmd.AddCommand(&cobra.Command{
		Use:   "run [profile]",
		Short: "run a profile",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			c := catalog()
			s, err := launch.NewSession(c, args[0])
			if err != nil {
				log.Fatal(err)
			}

			log.Info("session ", s.ID, " running profile ", s.Profile.Name)

			ctx, stop := signal.NotifyContext(cmd.Context(),
				syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			err = s.Run(ctx)
			os.Exit(launch.ExitCode(err))
		},
	})

	var importOut string
	importCmd := &cobra.Command{
		Use:   "import [launch.json]",
		Short: "convert a vscode launch.json into a catalog",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			f, err := os.Open(args[0])
			if err != nil {
				log.Fatal(err)
			}
			defer f.Close()

			c, err := spec.ImportVSCode(f)
			if err != nil {
				log.Fatal(err)
			}

			out := os.Stdout
			if importOut != "" {
				out, err = os.Create(importOut)
				if err != nil {
					log.Fatal(err)
				}
				defer out.Close()
			}

			enc := yaml.NewEncoder(out)
			enc.SetIndent(2)
			err = enc.Encode(c)
			if err != nil {
				log.Fatal(err)
			}
			enc.Close()
		},
	}
	importCmd.Flags().StringVarP(&importOut, "output", "o", "", "write catalog here instead of stdout")
	rootCmd.AddCommand(importCmd)

	rootCmd.AddCommand(dockerCmd())
	rootCmd.AddCommand(dataCmd())

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func catalog() *spec.Catalog {
	c, err := spec.LoadCatalog(catalogPath)
	if err != nil {
		log.Fatal(err)
	}
	return c
}

func dockerCmd() *cobra.Command {

	var image string
	var dataRoot string

	cc := &cobra.Command{
		Use:   "docker",
		Short: "containerized launch",
	}

	runspec := func() *docker.RunSpec {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatal(err)
		}
		username := ""
		if u, err := user.Current(); err == nil {
			username = u.Username
		}
		if dataRoot == "" {
			dataRoot = filepath.Join(home, "dataroot")
		}
		s := docker.DefaultRunSpec(home, username, dataRoot)
		if image != "" {
			s.Image = image
		}
		return s
	}

	cc.PersistentFlags().StringVar(&image, "image", "", "override the container image")
	cc.PersistentFlags().StringVar(&dataRoot, "dataroot", "", "host path of the data root")

	cc.AddCommand(&cobra.Command{
		Use:   "args",
		Short: "print the composed docker run command line",
		Run: func(cmd *cobra.Command, args []string) {
			composed, err := runspec().Args()
			if err != nil {
				log.Fatal(err)
			}
			fmt.Println("docker")
			for _, a := range composed {
				fmt.Println(a)
			}
		},
	})

	cc.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "start the training container",
		Run: func(cmd *cobra.Command, args []string) {
			err := docker.Run(cmd.Context(), runspec())
			if err != nil {
				os.Exit(launch.ExitCode(err))
			}
		},
	})

	cc.AddCommand(&cobra.Command{
		Use:   "resolve [image]",
		Short: "resolve an image reference to its registry digest",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			digest, err := docker.Resolve(cmd.Context(), args[0])
			if err != nil {
				log.Fatal(err)
			}
			fmt.Println(digest)
		},
	})

	return cc
}

func dataCmd() *cobra.Command {

	var cfg dataroot.Config

	cc := &cobra.Command{
		Use:   "data",
		Short: "dataset management",
	}

	cc.PersistentFlags().StringVar(&cfg.Endpoint, "endpoint", "", "s3 endpoint")
	cc.PersistentFlags().StringVar(&cfg.Bucket, "bucket", "", "s3 bucket")
	cc.PersistentFlags().BoolVar(&cfg.Secure, "secure", true, "use tls")

	cc.AddCommand(&cobra.Command{
		Use:   "sync [prefix] [dest]",
		Short: "download datasets into the data root",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			cfg.ConfigFromEnv()
			count, total, err := dataroot.Sync(cmd.Context(), cfg, args[0], args[1])
			if err != nil {
				log.Fatal(err)
			}
			log.Info("synced ", count, " objects, ", humanize.Bytes(total))
		},
	})

	return cc
}
