// Copyright (c) 2019 devblok
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okapi3d/okapi/rhi"
	"github.com/okapi3d/okapi/rhi/nullr"
	"github.com/okapi3d/okapi/rhi/vkr"
	"github.com/okapi3d/okapi/rhi/wgr"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Print the capabilities of the selected graphics device",
	RunE:  runInfo,
}

func init() {
	rootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	settings := loadSettings()

	var device rhi.Device
	switch settings.API {
	case rhi.APIVulkan:
		instance, err := vkr.NewInstance(vkr.InstanceConfig{
			AppName: settings.AppName,
		}, nil)
		if err != nil {
			return err
		}
		defer instance.Destroy()

		device, err = vkr.NewDevice(instance, vkr.Config{})
		if err != nil {
			return err
		}
	case rhi.APIWebGPU:
		var err error
		device, err = wgr.NewDevice(wgr.Config{AppName: settings.AppName})
		if err != nil {
			return err
		}
	default:
		var err error
		device, err = nullr.NewDevice(nullr.Config{})
		if err != nil {
			return err
		}
	}
	defer device.Destroy()

	raw, err := json.MarshalIndent(device.Info(), "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(raw))
	return nil
}
