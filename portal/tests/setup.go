package tests

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"studybuddy/portal/auth"
	"studybuddy/portal/schema"
	"studybuddy/portal/services"
	"studybuddy/portal/storage"

	"github.com/go-chi/chi/v5"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testEnv struct {
	portal  services.Portal
	api     chi.Router
	storage storage.Storage
	db      *gorm.DB
}

const (
	adminName     = "admin123"
	adminEmail    = "admin123@mail.com"
	adminPassword = "admin_password123"
)

func setupTestEnv(t *testing.T) *testEnv {
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}

	err = db.AutoMigrate(schema.Tables()...)
	if err != nil {
		t.Fatal(err)
	}

	storagePath := filepath.Join(t.TempDir(), "storage")
	err = os.MkdirAll(storagePath, 0777)
	if err != nil {
		t.Fatalf("error creating storage directory: %v", err)
	}

	store := storage.NewSharedDisk(storagePath)

	credentials, err := auth.NewBasicCredentialStore(
		db,
		auth.NewAuditLogger(new(bytes.Buffer)),
		auth.BasicStoreArgs{
			Secret:        []byte("290zcv02ai249"),
			AdminName:     adminName,
			AdminEmail:    adminEmail,
			AdminPassword: adminPassword,
		},
	)
	if err != nil {
		t.Fatal(err)
	}

	portal := services.NewPortal(db, store, credentials)

	return &testEnv{portal: portal, api: portal.Routes(), storage: store, db: db}
}

func (t *testEnv) newClient() client {
	return client{api: t.api}
}

func (t *testEnv) adminClient() (client, error) {
	c := t.newClient()
	err := c.login("admin", loginInfo{Email: adminEmail, Password: adminPassword})
	return c, err
}

func (t *testEnv) newStudent(name string) (client, error) {
	c := t.newClient()
	login, err := c.studentSignup(name, name+"@mail.com", name+"_password")
	if err != nil {
		return client{}, err
	}

	err = c.login("student", login)
	if err != nil {
		return client{}, err
	}

	return c, nil
}

func (t *testEnv) newInstructor(name, domainId string) (client, error) {
	c := t.newClient()
	login, err := c.instructorSignup(name, name+"@mail.com", name+"_password", domainId)
	if err != nil {
		return client{}, err
	}

	err = c.login("instructor", login)
	if err != nil {
		return client{}, err
	}

	return c, nil
}

// newDomainAndCourse creates a domain with a single course and returns their ids.
func (t *testEnv) newDomainAndCourse(admin client, name string) (string, string, error) {
	domainId, err := admin.createDomain(name)
	if err != nil {
		return "", "", err
	}

	courseId, err := admin.createCourse(fmt.Sprintf("intro to %v", name), 3, domainId)
	if err != nil {
		return "", "", err
	}

	return domainId, courseId, nil
}

// assignInstructor runs the full apply/accept workflow for an instructor and course.
func (t *testEnv) assignInstructor(admin, instructor client, courseId string) error {
	applicationId, err := instructor.apply(courseId)
	if err != nil {
		return err
	}

	_, err = admin.updateApplication(applicationId, "accepted")
	return err
}
