package tests

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"time"

	"studybuddy/portal/services"

	"github.com/go-chi/chi/v5"
)

type httpTestRequest struct {
	api http.Handler

	method   string
	endpoint string
	headers  map[string]string
	json     interface{}
	body     io.Reader
	login    *loginInfo
}

func newHttpTestRequest(api http.Handler, method, endpoint string) *httpTestRequest {
	return &httpTestRequest{
		api:      api,
		method:   method,
		endpoint: endpoint,
		headers:  nil,
		json:     nil,
		body:     nil,
	}
}

func (r *httpTestRequest) Header(key, value string) *httpTestRequest {
	if r.headers == nil {
		r.headers = make(map[string]string)
	}
	r.headers[key] = value
	return r
}

func (r *httpTestRequest) Login(email, password string) *httpTestRequest {
	r.login = &loginInfo{Email: email, Password: password}
	return r
}

func (r *httpTestRequest) Auth(token string) *httpTestRequest {
	return r.Header("Authorization", fmt.Sprintf("Bearer %v", token))
}

func (r *httpTestRequest) Json(data interface{}) *httpTestRequest {
	r.json = data
	return r
}

func (r *httpTestRequest) Body(body io.Reader) *httpTestRequest {
	r.body = body
	return r
}

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidValue = errors.New("invalid value")
)

func errForStatus(code int) error {
	switch code {
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusUnprocessableEntity:
		return ErrInvalidValue
	default:
		return nil
	}
}

// response body will be parsed into result, passing nil indicates that no result is returned.
func (r *httpTestRequest) Do(result interface{}) error {
	if r.json != nil {
		body := new(bytes.Buffer)
		err := json.NewEncoder(body).Encode(r.json)
		if err != nil {
			return fmt.Errorf("error encoding json body for endpoint %v: %w", r.endpoint, err)
		}
		r.body = body
	}

	req := httptest.NewRequest(r.method, r.endpoint, r.body)
	if r.headers != nil {
		for k, v := range r.headers {
			req.Header.Add(k, v)
		}
	}

	if r.login != nil {
		req.SetBasicAuth(r.login.Email, r.login.Password)
	}

	w := httptest.NewRecorder()

	r.api.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		if err := errForStatus(res.StatusCode); err != nil {
			return fmt.Errorf("%w: %v request to endpoint %v returned content '%v'", err, r.method, r.endpoint, w.Body.String())
		}
		return fmt.Errorf("%v request to endpoint %v returned status %d, content '%v'", r.method, r.endpoint, res.StatusCode, w.Body.String())
	}

	if result != nil {
		err := json.NewDecoder(res.Body).Decode(result)
		if err != nil {
			return fmt.Errorf("error parsing %v response from endpoint %v: %w", r.method, r.endpoint, err)
		}
	}

	return nil
}

type client struct {
	api       chi.Router
	authToken string
	userId    string
}

func (c *client) Get(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "GET", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

func (c *client) Post(endpoint string) *httpTestRequest {
	r := newHttpTestRequest(c.api, "POST", endpoint)
	if c.authToken != "" {
		return r.Auth(c.authToken)
	}
	return r
}

type loginInfo struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (c *client) studentSignup(name, email, password string) (loginInfo, error) {
	body := map[string]interface{}{
		"name": name, "email": email, "password": password,
		"date_of_birth": time.Date(2000, 1, 15, 0, 0, 0, 0, time.UTC),
		"phone_no":      "555-0100",
	}

	err := c.Post("/student/signup").Json(body).Do(nil)
	if err != nil {
		return loginInfo{}, err
	}

	return loginInfo{Email: email, Password: password}, nil
}

func (c *client) instructorSignup(name, email, password, domainId string) (loginInfo, error) {
	body := map[string]interface{}{
		"name": name, "email": email, "password": password,
		"date_of_birth": time.Date(1985, 6, 2, 0, 0, 0, 0, time.UTC),
		"phone_no":      "555-0200",
		"domain_id":     domainId,
	}

	err := c.Post("/instructor/signup").Json(body).Do(nil)
	if err != nil {
		return loginInfo{}, err
	}

	return loginInfo{Email: email, Password: password}, nil
}

func (c *client) login(role string, login loginInfo) error {
	var res map[string]string
	err := c.Get(fmt.Sprintf("/%v/login", role)).Login(login.Email, login.Password).Do(&res)
	if err != nil {
		return err
	}

	c.authToken = res["access_token"]
	c.userId = res["user_id"]

	return nil
}

func (c *client) createDomain(name string) (string, error) {
	body := new(bytes.Buffer)
	form := multipart.NewWriter(body)
	if err := form.WriteField("name", name); err != nil {
		return "", err
	}
	if err := form.Close(); err != nil {
		return "", err
	}

	var res services.DomainInfo
	err := c.Post("/admin/domains").
		Header("Content-Type", form.FormDataContentType()).
		Body(body).
		Do(&res)
	return res.Id.String(), err
}

func (c *client) createCourse(title string, creditHours int, domainId string) (string, error) {
	body := map[string]interface{}{
		"title": title, "credit_hours": creditHours, "domain_id": domainId,
	}

	var res map[string]string
	err := c.Post("/admin/courses").Json(body).Do(&res)
	return res["course_id"], err
}

func (c *client) apply(courseId string) (string, error) {
	var res map[string]string
	err := c.Post(fmt.Sprintf("/instructor/courses/%v/apply", courseId)).Do(&res)
	return res["application_id"], err
}

func (c *client) myApplications() ([]services.ApplicationInfo, error) {
	var res []services.ApplicationInfo
	err := c.Get("/instructor/applications").Do(&res)
	return res, err
}

func (c *client) openCourses() ([]services.AssignedCourseInfo, error) {
	var res []services.AssignedCourseInfo
	err := c.Get("/instructor/open-courses").Do(&res)
	return res, err
}

func (c *client) assignedCourses() ([]services.AssignedCourseInfo, error) {
	var res []services.AssignedCourseInfo
	err := c.Get("/instructor/courses").Do(&res)
	return res, err
}

func (c *client) pendingApplications() ([]services.PendingApplicationInfo, error) {
	var res []services.PendingApplicationInfo
	err := c.Get("/admin/applications").Do(&res)
	return res, err
}

func (c *client) applicationDetail(applicationId string) (services.ApplicationDetail, error) {
	var res services.ApplicationDetail
	err := c.Get(fmt.Sprintf("/admin/applications/%v", applicationId)).Do(&res)
	return res, err
}

type decisionResult struct {
	Status               string `json:"status"`
	DirectoryProvisioned bool   `json:"directory_provisioned"`
}

func (c *client) updateApplication(applicationId, status string) (decisionResult, error) {
	body := map[string]string{"status": status}

	var res decisionResult
	err := c.Post(fmt.Sprintf("/admin/applications/%v", applicationId)).Json(body).Do(&res)
	return res, err
}

func (c *client) enroll(courseId, instructorId string) error {
	body := map[string]string{"instructor_id": instructorId}
	return c.Post(fmt.Sprintf("/student/courses/%v/enroll", courseId)).Json(body).Do(nil)
}

func (c *client) rate(courseId, instructorId string, rating int) error {
	body := map[string]interface{}{"instructor_id": instructorId, "rating": rating}
	return c.Post(fmt.Sprintf("/student/courses/%v/rate", courseId)).Json(body).Do(nil)
}

func (c *client) editProfile(updates map[string]interface{}) error {
	return c.Post("/student/edit-profile").Json(updates).Do(nil)
}

func (c *client) myCourseDetail(courseId string) (services.EnrolledCourseDetail, error) {
	var res services.EnrolledCourseDetail
	err := c.Get(fmt.Sprintf("/student/courses/%v", courseId)).Do(&res)
	return res, err
}

func (c *client) enrolledCourses() ([]services.EnrolledCourseInfo, error) {
	var res []services.EnrolledCourseInfo
	err := c.Get("/student/courses").Do(&res)
	return res, err
}

func (c *client) courseDetail(courseId string) (services.CourseDetail, error) {
	var res services.CourseDetail
	err := c.Get(fmt.Sprintf("/catalog/courses/%v", courseId)).Do(&res)
	return res, err
}

func multipartFiles(files map[string]string) (io.Reader, string, error) {
	body := new(bytes.Buffer)
	form := multipart.NewWriter(body)
	for name, content := range files {
		part, err := form.CreateFormFile("files", name)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write([]byte(content)); err != nil {
			return nil, "", err
		}
	}
	if err := form.Close(); err != nil {
		return nil, "", err
	}
	return body, form.FormDataContentType(), nil
}

func (c *client) uploadContent(kind, courseId string, files map[string]string) ([]string, error) {
	body, contentType, err := multipartFiles(files)
	if err != nil {
		return nil, err
	}

	var res map[string][]string
	err = c.Post(fmt.Sprintf("/content/courses/%v/%v", courseId, kind)).
		Header("Content-Type", contentType).
		Body(body).
		Do(&res)
	return res["files"], err
}

func (c *client) listContent(kind, courseId, instructorId string) ([]string, error) {
	var res map[string][]string
	err := c.Get(fmt.Sprintf("/content/courses/%v/instructors/%v/%v", courseId, instructorId, kind)).Do(&res)
	return res["files"], err
}

func (c *client) downloadMaterial(courseId, instructorId, filename string) (string, error) {
	endpoint := fmt.Sprintf("/content/courses/%v/instructors/%v/materials/%v", courseId, instructorId, filename)
	req := httptest.NewRequest("GET", endpoint, nil)
	w := httptest.NewRecorder()
	c.api.ServeHTTP(w, req)

	res := w.Result()
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		if err := errForStatus(res.StatusCode); err != nil {
			return "", err
		}
		return "", fmt.Errorf("get %v failed with status %d and res '%v'", endpoint, res.StatusCode, w.Body.String())
	}

	return w.Body.String(), nil
}
