// Command bmgtool inspects, edits and rebuilds BMG message containers.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang/glog"
	bmg "github.com/logicossoftware/go-bmg"
	"github.com/spf13/cobra"
)

func main() {
	err := newRootCmd().Execute()
	glog.Flush()
	if err != nil {
		os.Exit(1)
	}
}

type app struct {
	configPath string
	cfg        Config
}

func newRootCmd() *cobra.Command {
	a := &app{cfg: defaultConfig()}
	root := &cobra.Command{
		Use:          "bmgtool",
		Short:        "Inspect, edit and rebuild BMG message containers",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// glog refuses to log before the standard flag set is parsed;
			// its flags were already filled in through the persistent set.
			if !flag.Parsed() {
				_ = flag.CommandLine.Parse(nil)
			}
			cfg, err := LoadConfig(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", defaultConfigPath(), "ini config file")
	root.PersistentFlags().AddGoFlagSet(flag.CommandLine)

	root.AddCommand(
		a.infoCmd(),
		a.dumpCmd(),
		a.setCmd(),
		a.rebuildCmd(),
		a.patchCmd(),
	)
	return root
}

func (a *app) load(path string) (*bmg.Container, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := bmg.Parse(data, a.cfg.parseOptions()...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	glog.V(1).Infof("loaded %s: %d entries, %d cross-references", path, len(c.Entries()), len(c.CrossRefs()))
	return c, nil
}

func (a *app) build(c *bmg.Container) (*bmg.BuildResult, error) {
	res, err := c.Build(bmg.WithVerify(a.cfg.Verify))
	if err != nil {
		return nil, err
	}
	for _, d := range res.Diagnostics {
		glog.Warningf("build: %s", d)
	}
	return res, nil
}

func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	glog.V(1).Infof("wrote %s (%d bytes)", path, len(data))
	return nil
}
