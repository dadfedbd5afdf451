package fileset_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rancher/gh-pages-action/internal/fileset"
)

func writeTree(root string, files map[string]string) {
	for name, contents := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		Expect(os.MkdirAll(filepath.Dir(path), 0o755)).To(Succeed())
		Expect(os.WriteFile(path, []byte(contents), 0o644)).To(Succeed())
	}
}

var _ = Describe("Match", func() {
	var root string

	BeforeEach(func() {
		root = GinkgoT().TempDir()
		writeTree(root, map[string]string{
			"hello.txt":          "hello",
			"index.html":         "<html/>",
			"css/site.css":       "body {}",
			"js/app.js":          "app()",
			"js/vendor/lib.js":   "lib()",
			".hidden":            "secret",
			".well-known/x.json": "{}",
		})
	})

	It("matches every regular file and skips dotfiles by default", func() {
		got, err := fileset.Match(root, []string{"**/*"}, fileset.MatchOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal([]string{
			filepath.Join("css", "site.css"),
			"hello.txt",
			"index.html",
			filepath.Join("js", "app.js"),
			filepath.Join("js", "vendor", "lib.js"),
		}))
	})

	It("includes dotfiles when asked", func() {
		got, err := fileset.Match(root, []string{"**/*"}, fileset.MatchOptions{Dot: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(ContainElements(".hidden", filepath.Join(".well-known", "x.json")))
		Expect(got).To(HaveLen(7))
	})

	It("keeps dotfiles named explicitly", func() {
		got, err := fileset.Match(root, []string{".hidden"}, fileset.MatchOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal([]string{".hidden"}))
	})

	It("never returns directories", func() {
		got, err := fileset.Match(root, []string{"*"}, fileset.MatchOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal([]string{"hello.txt", "index.html"}))
	})

	It("applies negated patterns and removes duplicates", func() {
		got, err := fileset.Match(root, []string{"js/**/*.js", "**/*.js", "!js/vendor/**"}, fileset.MatchOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal([]string{filepath.Join("js", "app.js")}))
	})

	It("returns nothing when everything is negated", func() {
		got, err := fileset.Match(root, []string{"*.txt", "!hello.txt"}, fileset.MatchOptions{})
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(BeEmpty())
	})

	It("rejects malformed patterns", func() {
		_, err := fileset.Match(root, []string{"[unterminated"}, fileset.MatchOptions{})
		Expect(err).To(HaveOccurred())
	})
})
