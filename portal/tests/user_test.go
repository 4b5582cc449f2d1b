package tests

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestStudentSignupAndLogin(t *testing.T) {
	env := setupTestEnv(t)

	for i := 0; i < 5; i++ {
		name := fmt.Sprintf("student%d", i)

		client := env.newClient()
		login, err := client.studentSignup(name, name+"@mail.com", name+"_password")
		if err != nil {
			t.Fatal(err)
		}

		_, err = client.studentSignup(name, name+"@mail.com", name+"_password")
		if !errors.Is(err, ErrConflict) {
			t.Fatalf("duplicate signup should fail: %v", err)
		}

		err = client.login("student", loginInfo{Email: "other@mail.com", Password: login.Password})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("login should fail with wrong email: %v", err)
		}

		err = client.login("student", loginInfo{Email: login.Email, Password: "password"})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("login should fail with wrong password: %v", err)
		}

		err = client.login("student", login)
		if err != nil {
			t.Fatal(err)
		}

		var info map[string]interface{}
		if err := client.Get("/student/info").Do(&info); err != nil {
			t.Fatal(err)
		}
		if info["name"] != name || info["email"] != login.Email || info["id"] != client.userId {
			t.Fatalf("invalid info %v", info)
		}
	}
}

func TestRoleTokensAreNotInterchangeable(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	domainId, _, err := env.newDomainAndCourse(admin, "physics")
	if err != nil {
		t.Fatal(err)
	}

	student, err := env.newStudent("sam")
	if err != nil {
		t.Fatal(err)
	}

	instructor, err := env.newInstructor("ivy", domainId)
	if err != nil {
		t.Fatal(err)
	}

	_, err = student.pendingApplications()
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("student token should not access admin endpoints: %v", err)
	}

	_, err = instructor.pendingApplications()
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("instructor token should not access admin endpoints: %v", err)
	}

	if err := admin.Get("/student/info").Do(nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("admin token should not access student endpoints: %v", err)
	}

	anon := env.newClient()
	if err := anon.Get("/student/info").Do(nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("missing token should be rejected: %v", err)
	}
}

func TestInstructorSignupRequiresDomain(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	client := env.newClient()
	_, err = client.instructorSignup("ivy", "ivy@mail.com", "pwd", "f47ac10b-58cc-4372-a567-0e02b2c3d479")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("signup with unknown domain should fail: %v", err)
	}

	domainId, err := admin.createDomain("chemistry")
	if err != nil {
		t.Fatal(err)
	}

	instructor, err := env.newInstructor("ivy", domainId)
	if err != nil {
		t.Fatal(err)
	}

	var info map[string]interface{}
	if err := instructor.Get("/instructor/info").Do(&info); err != nil {
		t.Fatal(err)
	}
	if info["domain_id"] != domainId || info["domain_name"] != "chemistry" {
		t.Fatalf("invalid instructor info %v", info)
	}
}

func TestChangePassword(t *testing.T) {
	env := setupTestEnv(t)

	student, err := env.newStudent("sam")
	if err != nil {
		t.Fatal(err)
	}

	body := map[string]string{"current_password": "wrong", "new_password": "new_password"}
	err = student.Post("/student/change-password").Json(body).Do(nil)
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("change password should fail with wrong current password: %v", err)
	}

	body["current_password"] = "sam_password"
	if err := student.Post("/student/change-password").Json(body).Do(nil); err != nil {
		t.Fatal(err)
	}

	fresh := env.newClient()
	err = fresh.login("student", loginInfo{Email: "sam@mail.com", Password: "sam_password"})
	if !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("old password should be rejected: %v", err)
	}

	if err := fresh.login("student", loginInfo{Email: "sam@mail.com", Password: "new_password"}); err != nil {
		t.Fatal(err)
	}
}

func TestCreateAdmin(t *testing.T) {
	env := setupTestEnv(t)

	admin, err := env.adminClient()
	if err != nil {
		t.Fatal(err)
	}

	body := map[string]string{"name": "second", "email": "second@mail.com", "password": "second_password"}

	student, err := env.newStudent("sam")
	if err != nil {
		t.Fatal(err)
	}
	if err := student.Post("/admin/create").Json(body).Do(nil); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("only admins can create admins: %v", err)
	}

	if err := admin.Post("/admin/create").Json(body).Do(nil); err != nil {
		t.Fatal(err)
	}

	second := env.newClient()
	if err := second.login("admin", loginInfo{Email: "second@mail.com", Password: "second_password"}); err != nil {
		t.Fatal(err)
	}
}

func TestEditProfile(t *testing.T) {
	env := setupTestEnv(t)

	student, err := env.newStudent("sam")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.newStudent("pat"); err != nil {
		t.Fatal(err)
	}

	if err := student.editProfile(map[string]interface{}{}); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("empty profile update should be rejected: %v", err)
	}

	if err := student.editProfile(map[string]interface{}{"email": "pat@mail.com"}); !errors.Is(err, ErrConflict) {
		t.Fatalf("taking another student's email should fail: %v", err)
	}

	updates := map[string]interface{}{
		"name":          "samuel",
		"email":         "samuel@mail.com",
		"phone_no":      "555-0199",
		"date_of_birth": time.Date(1999, 3, 4, 0, 0, 0, 0, time.UTC),
	}
	if err := student.editProfile(updates); err != nil {
		t.Fatal(err)
	}

	var info map[string]interface{}
	if err := student.Get("/student/info").Do(&info); err != nil {
		t.Fatal(err)
	}
	if info["name"] != "samuel" || info["email"] != "samuel@mail.com" || info["phone_no"] != "555-0199" {
		t.Fatalf("profile update not reflected: %v", info)
	}

	relogin := env.newClient()
	err = relogin.login("student", loginInfo{Email: "sam@mail.com", Password: "sam_password"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("login with the old email should fail: %v", err)
	}
	if err := relogin.login("student", loginInfo{Email: "samuel@mail.com", Password: "sam_password"}); err != nil {
		t.Fatal(err)
	}
}
