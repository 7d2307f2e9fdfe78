// Package cognito performs the admin lookups against an AWS Cognito user
// pool that delegated mode exposes under /admin.
package cognito

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/dmitrijs2005/foliokeeper/internal/common"
	"github.com/dmitrijs2005/foliokeeper/internal/logging"
)

var (
	loadDefaultAWSConfig = awsconfig.LoadDefaultConfig

	newClientFromConfig = func(cfg aws.Config, optFns ...func(*cip.Options)) API {
		return cip.NewFromConfig(cfg, optFns...)
	}
)

// API is the subset of the Cognito client used here.
type API interface {
	ListUsers(ctx context.Context, in *cip.ListUsersInput, optFns ...func(*cip.Options)) (*cip.ListUsersOutput, error)
	AdminListGroupsForUser(ctx context.Context, in *cip.AdminListGroupsForUserInput, optFns ...func(*cip.Options)) (*cip.AdminListGroupsForUserOutput, error)
}

type Config struct {
	Region          string
	UserPoolID      string
	AccessKeyID     string
	SecretAccessKey string
}

// User is a pool user as returned by the admin API.
type User struct {
	Username   string            `json:"username"`
	Sub        string            `json:"sub"`
	Email      string            `json:"email,omitempty"`
	Status     string            `json:"status"`
	Enabled    bool              `json:"enabled"`
	CreatedAt  *time.Time        `json:"created_at,omitempty"`
	Attributes map[string]string `json:"attributes"`
}

type Service struct {
	api    API
	poolID string
	logger logging.Logger
}

// New builds a Service from static settings. Credentials fall back to the
// default AWS chain when no access key is set.
func New(ctx context.Context, cfg Config, l logging.Logger) (*Service, error) {
	if cfg.UserPoolID == "" {
		return &Service{logger: l.With("module", "cognito")}, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return NewWithAPI(newClientFromConfig(awsCfg), cfg.UserPoolID, l), nil
}

func NewWithAPI(api API, poolID string, l logging.Logger) *Service {
	return &Service{api: api, poolID: poolID, logger: l.With("module", "cognito")}
}

func (s *Service) Configured() bool {
	return s != nil && s.api != nil && s.poolID != ""
}

func (s *Service) check() error {
	if !s.Configured() {
		return common.NewError(common.ErrConfiguration, "Cognito is not configured")
	}
	return nil
}

// GetUserBySub returns the user whose sub attribute matches, or nil.
func (s *Service) GetUserBySub(ctx context.Context, sub string) (*User, error) {
	if err := s.check(); err != nil {
		return nil, err
	}

	out, err := s.api.ListUsers(ctx, &cip.ListUsersInput{
		UserPoolId: aws.String(s.poolID),
		Filter:     aws.String(fmt.Sprintf("sub = %q", escapeFilter(sub))),
		Limit:      aws.Int32(1),
	})
	if err != nil {
		s.logger.Error(ctx, "list users failed", "sub", sub, "error", err)
		return nil, common.NewError(common.ErrorInternal, "Failed to look up user")
	}
	if len(out.Users) == 0 {
		return nil, nil
	}
	return toUser(out.Users[0]), nil
}

// IsUserInGroup reports whether username is a member of group.
func (s *Service) IsUserInGroup(ctx context.Context, username, group string) (bool, error) {
	if err := s.check(); err != nil {
		return false, err
	}

	var next *string
	for {
		out, err := s.api.AdminListGroupsForUser(ctx, &cip.AdminListGroupsForUserInput{
			UserPoolId: aws.String(s.poolID),
			Username:   aws.String(username),
			NextToken:  next,
		})
		if err != nil {
			s.logger.Error(ctx, "list groups failed", "username", username, "error", err)
			return false, common.NewError(common.ErrorInternal, "Failed to look up groups")
		}
		for _, g := range out.Groups {
			if aws.ToString(g.GroupName) == group {
				return true, nil
			}
		}
		if aws.ToString(out.NextToken) == "" {
			return false, nil
		}
		next = out.NextToken
	}
}

func toUser(u types.UserType) *User {
	res := &User{
		Username:   aws.ToString(u.Username),
		Status:     string(u.UserStatus),
		Enabled:    u.Enabled,
		CreatedAt:  u.UserCreateDate,
		Attributes: make(map[string]string, len(u.Attributes)),
	}
	for _, a := range u.Attributes {
		res.Attributes[aws.ToString(a.Name)] = aws.ToString(a.Value)
	}
	res.Sub = res.Attributes["sub"]
	res.Email = res.Attributes["email"]
	return res
}

func escapeFilter(v string) string {
	return strings.NewReplacer(`\`, ``, `"`, ``).Replace(v)
}
