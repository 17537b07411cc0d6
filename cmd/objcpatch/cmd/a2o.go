/*
Copyright © 2025 blacktop

Permission is hereby granted, free of charge, to any person obtaining a copy
of this software and associated documentation files (the "Software"), to deal
in the Software without restriction, including without limitation the rights
to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
copies of the Software, and to permit persons to whom the Software is
furnished to do so, subject to the following conditions:

The above copyright notice and this permission notice shall be included in
all copies or substantial portions of the Software.

THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
THE SOFTWARE.
*/
package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/MakeNowJust/heredoc/v2"
	"github.com/apex/log"
	"github.com/blacktop/objcpatch/internal/utils"
	"github.com/blacktop/objcpatch/pkg/objcpatch"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	a2oCmd.Flags().StringP("arch", "a", "", "Only resolve in this architecture of a fat/universal MachO")
	a2oCmd.Flags().BoolP("dec", "d", false, "Return offset in decimal")
	a2oCmd.Flags().BoolP("hex", "x", false, "Return offset in hexadecimal")
	viper.BindPFlag("a2o.arch", a2oCmd.Flags().Lookup("arch"))
	viper.BindPFlag("a2o.dec", a2oCmd.Flags().Lookup("dec"))
	viper.BindPFlag("a2o.hex", a2oCmd.Flags().Lookup("hex"))
	a2oCmd.MarkZshCompPositionalArgumentFile(1)
}

// a2oCmd represents the a2o command
var a2oCmd = &cobra.Command{
	Use:     "a2o <macho> <vaddr>",
	Aliases: []string{"a"},
	Short:   "Convert MachO virtual address to file offset",
	Example: heredoc.Doc(`
		# Find where a category_t lives in every slice of a universal binary
		❯ objcpatch a2o MyApp 0x100008120`),
	Args:          cobra.ExactArgs(2),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {

		if Verbose {
			log.SetLevel(log.DebugLevel)
		}

		// flags
		selectedArch := viper.GetString("a2o.arch")
		inDec := viper.GetBool("a2o.dec")
		inHex := viper.GetBool("a2o.hex")

		if inDec && inHex {
			return fmt.Errorf("you can only use --dec OR --hex")
		}

		addr, err := utils.ConvertStrToInt(args[1])
		if err != nil {
			return err
		}

		slices, err := objcpatch.OpenSlices(filepath.Clean(args[0]))
		if err != nil {
			return err
		}

		var found bool
		for _, s := range slices {
			if selectedArch != "" && !strings.EqualFold(selectedArch, s.Arch) {
				continue
			}
			off, ok := s.Resolve(addr)
			if !ok {
				log.WithField("arch", s.Arch).Warnf("address %#x is not mapped by any segment", addr)
				continue
			}
			found = true
			switch {
			case inDec:
				fmt.Printf("%d\n", off)
			case inHex:
				fmt.Printf("%#x\n", off)
			default:
				log.WithFields(log.Fields{
					"arch":    s.Arch,
					"hex":     fmt.Sprintf("%#x", off),
					"dec":     fmt.Sprintf("%d", off),
					"segment": s.Segment(addr).Name,
				}).Info("Offset")
			}
		}

		if !found {
			return fmt.Errorf("failed to find a segment containing address %#x", addr)
		}

		return nil
	},
}
