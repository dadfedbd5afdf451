package fileset_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rancher/gh-pages-action/internal/fileset"
)

var _ = Describe("Copy", func() {
	var (
		src  string
		dest string
		ctx  context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		tmp := GinkgoT().TempDir()
		src = filepath.Join(tmp, "src")
		dest = filepath.Join(tmp, "dest")
		writeTree(src, map[string]string{
			"index.html":      "index",
			"a/b/c/deep.txt":  "deep",
			"a/shallow.txt":   "shallow",
			"assets/logo.svg": "<svg/>",
		})
	})

	It("recreates the relative layout under dest", func() {
		files, err := fileset.Match(src, []string{"**/*"}, fileset.MatchOptions{})
		Expect(err).NotTo(HaveOccurred())

		Expect(fileset.Copy(ctx, files, src, dest)).To(Succeed())

		for name, want := range map[string]string{
			"index.html":      "index",
			"a/b/c/deep.txt":  "deep",
			"a/shallow.txt":   "shallow",
			"assets/logo.svg": "<svg/>",
		} {
			data, err := os.ReadFile(filepath.Join(dest, filepath.FromSlash(name)))
			Expect(err).NotTo(HaveOccurred(), name)
			Expect(string(data)).To(Equal(want), name)
		}
	})

	It("pairs each source with its own destination regardless of input order", func() {
		files := []string{"a/shallow.txt", "index.html", "a/b/c/deep.txt", "assets/logo.svg"}
		copier := &fileset.Copier{Concurrency: 1}

		Expect(copier.Copy(ctx, files, src, filepath.Join(dest, "site"))).To(Succeed())

		for _, name := range files {
			want, err := os.ReadFile(filepath.Join(src, filepath.FromSlash(name)))
			Expect(err).NotTo(HaveOccurred())
			got, err := os.ReadFile(filepath.Join(dest, "site", filepath.FromSlash(name)))
			Expect(err).NotTo(HaveOccurred(), name)
			Expect(got).To(Equal(want), name)
		}
	})

	It("overwrites existing files and tolerates existing directories", func() {
		writeTree(dest, map[string]string{"a/shallow.txt": "a much longer stale body"})

		copier := &fileset.Copier{Concurrency: 1}
		Expect(copier.Copy(ctx, []string{filepath.Join("a", "shallow.txt")}, src, dest)).To(Succeed())

		data, err := os.ReadFile(filepath.Join(dest, "a", "shallow.txt"))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(data)).To(Equal("shallow"))
	})

	It("fails when a directory path is occupied by a file", func() {
		writeTree(dest, map[string]string{"a": "not a directory"})

		err := fileset.Copy(ctx, []string{filepath.Join("a", "shallow.txt")}, src, dest)
		Expect(err).To(HaveOccurred())
	})

	It("fails when a source file is missing", func() {
		err := fileset.Copy(ctx, []string{"missing.txt"}, src, dest)
		Expect(err).To(HaveOccurred())
	})
})
