// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/cobra"

	pack200 "github.com/gopack200/unpack200"
	"github.com/gopack200/unpack200/archive"
)

var (
	verbose bool
	outPath string
)

func prettyPrint(buf []byte) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, buf, "", "\t"); err != nil {
		log.Println("JSON parse error:", err)
		return string(buf)
	}
	return pretty.String()
}

func unpack(cmd *cobra.Command, args []string) {
	in := args[0]

	opts := &pack200.Options{Verbosity: pack200.VerbosityQuiet}
	if verbose {
		opts.Verbosity = pack200.VerbosityVerbose
	}

	arc, err := archive.OpenFile(in, opts)
	if err != nil {
		log.Fatalf("unpack %s: %s", in, err)
	}
	for _, a := range arc.Anomalies {
		log.Printf("anomaly: %s", a)
	}

	dest := outPath
	if dest == "" {
		dest = in + ".out.jar"
	}
	out, err := os.Create(dest)
	if err != nil {
		log.Fatalf("cannot create %s: %s", dest, err)
	}
	defer out.Close()

	if err := archive.WriteJAR(out, arc.Files); err != nil {
		log.Fatalf("write jar: %s", err)
	}
	fmt.Printf("wrote %s (%d entries)\n", dest, len(arc.Files))
}

func inspect(cmd *cobra.Command, args []string) {
	in := args[0]
	f, err := os.Open(in)
	if err != nil {
		log.Fatalf("cannot open %s: %s", in, err)
	}
	defer f.Close()

	opts := &pack200.Options{HeaderOnly: true}
	d := pack200.New(opts)
	br := pack200.NewBitReader(f)

	seg, err := d.DecodeFrom(br)
	if err != nil {
		log.Fatalf("inspect %s: %s", in, err)
	}

	sum := struct {
		MajorVersion uint16   `json:"majorVersion"`
		MinorVersion uint16   `json:"minorVersion"`
		ClassCount   uint32   `json:"classCount"`
		FileCount    uint32   `json:"fileCount"`
		Fingerprint  string   `json:"fingerprint"`
		Anomalies    []string `json:"anomalies,omitempty"`
	}{
		MajorVersion: seg.Header.MajorVersion,
		MinorVersion: seg.Header.MinorVersion,
		ClassCount:   seg.Header.ClassCount,
		FileCount:    seg.Header.FileCount,
		Anomalies:    seg.Anomalies,
	}
	h := xxhash.New()
	fmt.Fprintf(h, "%d:%d:%d:%d", seg.Header.MajorVersion, seg.Header.MinorVersion, seg.Header.ClassCount, seg.Header.FileCount)
	sum.Fingerprint = fmt.Sprintf("%x", h.Sum64())

	out, _ := json.Marshal(sum)
	fmt.Println(prettyPrint(out))
}

func main() {
	var rootCmd = &cobra.Command{
		Use:   "unpack200",
		Short: "A Pack200 decoder",
		Long:  "Decodes Pack200 archives back into JAR files",
	}

	var versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("unpack200 version 0.0.1")
		},
	}

	var unpackCmd = &cobra.Command{
		Use:   "unpack <file.pack[.gz]>",
		Short: "Decode a Pack200 archive into a JAR",
		Args:  cobra.ExactArgs(1),
		Run:   unpack,
	}
	unpackCmd.Flags().StringVarP(&outPath, "out", "o", "", "output JAR path")

	var inspectCmd = &cobra.Command{
		Use:   "inspect <file.pack>",
		Short: "Print a segment's header and fingerprint without decoding classes (gzip input is not unwrapped)",
		Args:  cobra.ExactArgs(1),
		Run:   inspect,
	}

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.AddCommand(versionCmd, unpackCmd, inspectCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
