package lms

import (
	"context"
	"fmt"
	"strings"

	"github.com/repo-edu/repo-edu-sub001/internal/roster"
)

const nrpsMediaType = "application/vnd.ims.lti-nrps.v2.membershipcontainer+json"

// NRPSClient reads an LTI Names and Role Provisioning Services membership
// container. The course ID is the container URL.
type NRPSClient struct {
	pager *pager
}

// NewNRPS creates an NRPS client authenticating with a bearer token.
func NewNRPS(token string) *NRPSClient {
	return &NRPSClient{pager: newPager("nrps", nrpsMediaType, token)}
}

func (c *NRPSClient) Kind() roster.LMSKind {
	return roster.LMSNRPS
}

type nrpsMember struct {
	UserID     string   `json:"user_id"`
	Name       string   `json:"name"`
	GivenName  string   `json:"given_name"`
	FamilyName string   `json:"family_name"`
	Email      string   `json:"email"`
	Roles      []string `json:"roles"`
	Status     string   `json:"status"`
	LISPerson  string   `json:"lis_person_sourcedid"`
}

type nrpsContainer struct {
	ID      string `json:"id"`
	Context struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"context"`
	Members []nrpsMember `json:"members"`
}

func (c *NRPSClient) FetchCourse(ctx context.Context, courseID string) (*Course, error) {
	var page nrpsContainer
	if _, err := c.pager.get(ctx, courseID, &page); err != nil {
		return nil, err
	}
	return &Course{ID: page.Context.ID, Name: page.Context.Title}, nil
}

func (c *NRPSClient) FetchCourseUsers(ctx context.Context, courseID string) ([]roster.MemberDraft, error) {
	var drafts []roster.MemberDraft
	err := getAll(ctx, c.pager, courseID, func(page nrpsContainer) {
		for _, m := range page.Members {
			drafts = append(drafts, nrpsDraft(m))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("fetch nrps members: %w", err)
	}
	return drafts, nil
}

// FetchCourseGroups is not part of NRPS.
func (c *NRPSClient) FetchCourseGroups(ctx context.Context, courseID string) ([]roster.GroupSetDraft, error) {
	return nil, &Error{Kind: ErrUnsupported, LMS: "nrps", Message: "membership service does not expose groups"}
}

func nrpsDraft(m nrpsMember) roster.MemberDraft {
	name := m.Name
	if name == "" {
		name = strings.TrimSpace(m.GivenName + " " + m.FamilyName)
	}
	d := roster.MemberDraft{
		Name:          name,
		Email:         m.Email,
		StudentNumber: m.LISPerson,
		LMSUserID:     m.UserID,
		Role:          nrpsRole(m.Roles),
		Status:        roster.StatusActive,
	}
	if m.Status != "" && !strings.EqualFold(m.Status, "Active") {
		d.Status = roster.StatusInactive
	}
	return d
}

// nrpsRole maps LIS role URIs to a roster role. Anyone teaching is staff.
func nrpsRole(roles []string) roster.Role {
	for _, r := range roles {
		suffix := r
		if i := strings.LastIndexAny(r, "#/"); i >= 0 {
			suffix = r[i+1:]
		}
		switch suffix {
		case "Instructor", "TeachingAssistant", "ContentDeveloper", "Administrator", "Mentor":
			return roster.RoleStaff
		}
	}
	return roster.RoleStudent
}
