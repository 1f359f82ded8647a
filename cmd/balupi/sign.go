package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/balupi/pkg/handshake"
	"github.com/spf13/cobra"
)

var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Print handshake headers for a request",
	Long: `Computes the timestamp and signature headers for a handshake request,
ready to paste into curl. --body accepts a literal or @file.`,
	Example: `  balupi sign --method POST --path /api/handshake/nas-going-offline --body @snapshot.json`,
	Run: func(cmd *cobra.Command, args []string) {
		method, _ := cmd.Flags().GetString("method")
		path, _ := cmd.Flags().GetString("path")
		bodyArg, _ := cmd.Flags().GetString("body")

		body, err := readBody(bodyArg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading body: %v\n", err)
			os.Exit(1)
		}
		secret, err := resolveSecret(cmd)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		writeHeaders(os.Stdout, secret, method, path, body, time.Now())
	},
}

func readBody(arg string) ([]byte, error) {
	name, ok := strings.CutPrefix(arg, "@")
	if !ok {
		return []byte(arg), nil
	}
	if name == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(name)
}

func writeHeaders(w io.Writer, secret, method, path string, body []byte, now time.Time) {
	ts := strconv.FormatInt(now.Unix(), 10)
	fmt.Fprintf(w, "%s: %s\n", handshake.HeaderTimestamp, ts)
	fmt.Fprintf(w, "%s: %s\n", handshake.HeaderSignature, handshake.Sign(secret, strings.ToUpper(method), path, ts, body))
}

func init() {
	rootCmd.AddCommand(signCmd)
	signCmd.Flags().StringP("method", "X", "GET", "HTTP method")
	signCmd.Flags().String("path", "/api/handshake/status", "Request path")
	signCmd.Flags().StringP("body", "d", "", "Request body, or @file (@- for stdin)")
}
