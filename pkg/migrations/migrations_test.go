package migrations_test

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/Champ-Deep/LakeB2B-SlideSmith/pkg/migrations"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("migrations", func() {
	Context("migration source", func() {
		It("uses the embedded migrations when no folder is configured", func() {
			src, err := migrations.Source("")
			Expect(err).To(BeNil())

			files, err := fs.Glob(src, "*.sql")
			Expect(err).To(BeNil())
			Expect(files).NotTo(BeEmpty())

			content, err := fs.ReadFile(src, files[0])
			Expect(err).To(BeNil())
			Expect(string(content)).To(ContainSubstring("-- +goose Up"))
			for _, table := range []string{"jobs", "job_rows", "research_cache", "generated_decks"} {
				Expect(string(content)).To(ContainSubstring("CREATE TABLE IF NOT EXISTS " + table + " ("))
			}
		})

		It("fails to migrate the db -- migration folder does not exists", func() {
			err := migrations.MigrateStore(nil, "some folder", nil)
			Expect(err).NotTo(BeNil())
			Expect(os.IsNotExist(err)).To(BeTrue())
		})

		It("refuses a file as migration folder", func() {
			f := filepath.Join(GinkgoT().TempDir(), "init.sql")
			Expect(os.WriteFile(f, []byte("-- +goose Up"), 0o600)).To(Succeed())

			_, err := migrations.Source(f)
			Expect(err).To(MatchError(ContainSubstring("is not a folder")))
		})

		It("reads migrations from a configured folder", func() {
			dir := GinkgoT().TempDir()
			Expect(os.WriteFile(filepath.Join(dir, "00001_init.sql"), []byte("-- +goose Up"), 0o600)).To(Succeed())

			src, err := migrations.Source(dir)
			Expect(err).To(BeNil())
			files, err := fs.Glob(src, "*.sql")
			Expect(err).To(BeNil())
			Expect(files).To(ConsistOf("00001_init.sql"))
		})
	})
})
