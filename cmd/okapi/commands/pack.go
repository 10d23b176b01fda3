// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package commands

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gobuffalo/packr"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/okapi3d/okapi/renderpack/pak"
)

// resources carries the scaffolding the init command writes out.
var resources = packr.NewBox("./resources")

var packOut string

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Renderpack archive tools",
}

var packBuildCmd = &cobra.Command{
	Use:   "build [dir]",
	Short: "Compile a renderpack directory into an .opk archive",
	Long: `Reads renderpack.json from the given directory, compiles it
together with the shader files it references and writes a compressed
.opk archive.`,
	Args: cobra.ExactArgs(1),
	RunE: runPackBuild,
}

var packInitCmd = &cobra.Command{
	Use:   "init [dir]",
	Short: "Write an example renderpack.json to a directory",
	Args:  cobra.ExactArgs(1),
	RunE:  runPackInit,
}

func init() {
	packBuildCmd.Flags().StringVar(&packOut, "out", "", "output file, defaults to <name>.opk next to the manifest")
	packCmd.AddCommand(packBuildCmd)
	packCmd.AddCommand(packInitCmd)
	rootCmd.AddCommand(packCmd)
}

func runPackBuild(cmd *cobra.Command, args []string) error {
	dir := args[0]
	m, err := readManifest(filepath.Join(dir, "renderpack.json"))
	if err != nil {
		return err
	}

	data, table, shaderFiles, err := m.compile()
	if err != nil {
		return err
	}

	builder, err := pak.NewBuilder(pak.Header{})
	if err != nil {
		return err
	}

	var packData bytes.Buffer
	if err := gob.NewEncoder(&packData).Encode(data); err != nil {
		return fmt.Errorf("encode renderpack: %w", err)
	}
	if err := builder.Add("renderpack.gob", &packData); err != nil {
		return err
	}

	var bindingData bytes.Buffer
	if err := gob.NewEncoder(&bindingData).Encode(table); err != nil {
		return fmt.Errorf("encode binding table: %w", err)
	}
	if err := builder.Add("bindings.gob", &bindingData); err != nil {
		return err
	}

	for _, shader := range shaderFiles {
		f, err := os.Open(filepath.Join(dir, shader))
		if err != nil {
			return fmt.Errorf("shader %s: %w", shader, err)
		}
		err = builder.Add(shader, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("shader %s: %w", shader, err)
		}
	}

	out := packOut
	if out == "" {
		out = filepath.Join(dir, m.Name+".opk")
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := builder.WriteTo(f); err != nil {
		return err
	}

	log.WithFields(log.Fields{
		"pack":    m.Name,
		"shaders": len(shaderFiles),
		"out":     out,
	}).Info("Renderpack built")
	return nil
}

func runPackInit(cmd *cobra.Command, args []string) error {
	dir := args[0]
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	target := filepath.Join(dir, "renderpack.json")
	if _, err := os.Stat(target); err == nil {
		return fmt.Errorf("%s already exists", target)
	}

	example, err := resources.MustBytes("renderpack.json")
	if err != nil {
		return fmt.Errorf("embedded example: %w", err)
	}
	if err := os.WriteFile(target, example, 0o644); err != nil {
		return err
	}

	log.WithField("file", target).Info("Example renderpack written")
	return nil
}
