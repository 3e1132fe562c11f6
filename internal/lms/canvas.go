package lms

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/repo-edu/repo-edu-sub001/internal/roster"
)

const canvasPerPage = 100

// CanvasClient reads courses through the Canvas REST API.
type CanvasClient struct {
	baseURL string
	pager   *pager
}

// NewCanvas creates a Canvas client for the instance at baseURL.
func NewCanvas(baseURL, token string) *CanvasClient {
	return &CanvasClient{
		baseURL: strings.TrimRight(baseURL, "/") + "/api/v1",
		pager:   newPager("canvas", "application/json", token),
	}
}

func (c *CanvasClient) Kind() roster.LMSKind {
	return roster.LMSCanvas
}

type canvasCourse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type canvasEnrollment struct {
	Type  string `json:"type"`
	State string `json:"enrollment_state"`
}

type canvasUser struct {
	ID          int64              `json:"id"`
	Name        string             `json:"name"`
	Email       string             `json:"email"`
	LoginID     string             `json:"login_id"`
	SISUserID   string             `json:"sis_user_id"`
	Enrollments []canvasEnrollment `json:"enrollments"`
}

type canvasGroupCategory struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type canvasGroup struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func (c *CanvasClient) url(path string, query url.Values) string {
	if query == nil {
		query = url.Values{}
	}
	query.Set("per_page", strconv.Itoa(canvasPerPage))
	return c.baseURL + path + "?" + query.Encode()
}

func (c *CanvasClient) FetchCourse(ctx context.Context, courseID string) (*Course, error) {
	var course canvasCourse
	if _, err := c.pager.get(ctx, c.baseURL+"/courses/"+url.PathEscape(courseID), &course); err != nil {
		return nil, err
	}
	return &Course{ID: strconv.FormatInt(course.ID, 10), Name: course.Name}, nil
}

func (c *CanvasClient) FetchCourseUsers(ctx context.Context, courseID string) ([]roster.MemberDraft, error) {
	q := url.Values{}
	q.Add("include[]", "email")
	q.Add("include[]", "enrollments")
	var drafts []roster.MemberDraft
	err := getAll(ctx, c.pager, c.url("/courses/"+url.PathEscape(courseID)+"/users", q), func(page []canvasUser) {
		for _, u := range page {
			drafts = append(drafts, canvasDraft(u))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("fetch canvas users: %w", err)
	}
	return drafts, nil
}

func canvasDraft(u canvasUser) roster.MemberDraft {
	d := roster.MemberDraft{
		Name:          u.Name,
		Email:         u.Email,
		StudentNumber: u.SISUserID,
		LMSUserID:     strconv.FormatInt(u.ID, 10),
		Role:          roster.RoleStudent,
		Status:        roster.StatusInactive,
	}
	if d.Email == "" && strings.Contains(u.LoginID, "@") {
		d.Email = u.LoginID
	}
	if u.LoginID != "" {
		d.CustomFields = map[string]string{"login_id": u.LoginID}
	}
	for _, e := range u.Enrollments {
		switch e.Type {
		case "TeacherEnrollment", "TaEnrollment", "DesignerEnrollment":
			d.Role = roster.RoleStaff
		}
		if e.State == "active" || e.State == "invited" {
			d.Status = roster.StatusActive
		}
	}
	if len(u.Enrollments) == 0 {
		d.Status = roster.StatusActive
	}
	return d
}

func (c *CanvasClient) FetchCourseGroups(ctx context.Context, courseID string) ([]roster.GroupSetDraft, error) {
	var categories []canvasGroupCategory
	err := getAll(ctx, c.pager, c.url("/courses/"+url.PathEscape(courseID)+"/group_categories", nil), func(page []canvasGroupCategory) {
		categories = append(categories, page...)
	})
	if err != nil {
		return nil, fmt.Errorf("fetch canvas group categories: %w", err)
	}

	sets := make([]roster.GroupSetDraft, 0, len(categories))
	for _, cat := range categories {
		set := roster.GroupSetDraft{Name: cat.Name, LMSGroupSetID: strconv.FormatInt(cat.ID, 10)}

		var groups []canvasGroup
		path := fmt.Sprintf("/group_categories/%d/groups", cat.ID)
		if err := getAll(ctx, c.pager, c.url(path, nil), func(page []canvasGroup) {
			groups = append(groups, page...)
		}); err != nil {
			return nil, fmt.Errorf("fetch canvas groups of %s: %w", cat.Name, err)
		}

		for _, g := range groups {
			gd := roster.GroupDraft{Name: g.Name, LMSGroupID: strconv.FormatInt(g.ID, 10)}
			path := fmt.Sprintf("/groups/%d/users", g.ID)
			if err := getAll(ctx, c.pager, c.url(path, nil), func(page []canvasUser) {
				for _, u := range page {
					gd.MemberLMSIDs = append(gd.MemberLMSIDs, strconv.FormatInt(u.ID, 10))
				}
			}); err != nil {
				return nil, fmt.Errorf("fetch canvas members of %s: %w", g.Name, err)
			}
			set.Groups = append(set.Groups, gd)
		}
		sets = append(sets, set)
	}
	return sets, nil
}
