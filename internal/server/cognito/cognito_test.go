package cognito

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	cip "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider/types"
	"github.com/dmitrijs2005/foliokeeper/internal/common"
	"github.com/dmitrijs2005/foliokeeper/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	listIn   *cip.ListUsersInput
	listOut  *cip.ListUsersOutput
	listErr  error
	groupIns []*cip.AdminListGroupsForUserInput
	pages    []*cip.AdminListGroupsForUserOutput
	groupErr error
}

func (f *fakeAPI) ListUsers(ctx context.Context, in *cip.ListUsersInput, _ ...func(*cip.Options)) (*cip.ListUsersOutput, error) {
	f.listIn = in
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.listOut, nil
}

func (f *fakeAPI) AdminListGroupsForUser(ctx context.Context, in *cip.AdminListGroupsForUserInput, _ ...func(*cip.Options)) (*cip.AdminListGroupsForUserOutput, error) {
	f.groupIns = append(f.groupIns, in)
	if f.groupErr != nil {
		return nil, f.groupErr
	}
	page := f.pages[0]
	f.pages = f.pages[1:]
	return page, nil
}

func TestGetUserBySub(t *testing.T) {
	api := &fakeAPI{listOut: &cip.ListUsersOutput{Users: []types.UserType{{
		Username:   aws.String("bob"),
		Enabled:    true,
		UserStatus: types.UserStatusTypeConfirmed,
		Attributes: []types.AttributeType{
			{Name: aws.String("sub"), Value: aws.String("sub-1")},
			{Name: aws.String("email"), Value: aws.String("bob@example.com")},
		},
	}}}}
	s := NewWithAPI(api, "pool-1", logging.Nop{})

	u, err := s.GetUserBySub(context.Background(), "sub-1")
	require.NoError(t, err)
	require.NotNil(t, u)
	assert.Equal(t, "bob", u.Username)
	assert.Equal(t, "sub-1", u.Sub)
	assert.Equal(t, "bob@example.com", u.Email)
	assert.Equal(t, "CONFIRMED", u.Status)
	assert.True(t, u.Enabled)

	assert.Equal(t, "pool-1", aws.ToString(api.listIn.UserPoolId))
	assert.Equal(t, `sub = "sub-1"`, aws.ToString(api.listIn.Filter))
	assert.Equal(t, int32(1), aws.ToInt32(api.listIn.Limit))
}

func TestGetUserBySub_Absent(t *testing.T) {
	s := NewWithAPI(&fakeAPI{listOut: &cip.ListUsersOutput{}}, "pool-1", logging.Nop{})

	u, err := s.GetUserBySub(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, u)
}

func TestGetUserBySub_SDKFailure(t *testing.T) {
	s := NewWithAPI(&fakeAPI{listErr: errors.New("throttled")}, "pool-1", logging.Nop{})

	_, err := s.GetUserBySub(context.Background(), "sub-1")
	assert.ErrorIs(t, err, common.ErrorInternal)
	assert.NotContains(t, err.Error(), "throttled")
}

func TestGetUserBySub_FilterEscaping(t *testing.T) {
	api := &fakeAPI{listOut: &cip.ListUsersOutput{}}
	s := NewWithAPI(api, "pool-1", logging.Nop{})

	_, err := s.GetUserBySub(context.Background(), `x" or name = "y`)
	require.NoError(t, err)
	assert.Equal(t, `sub = "x or name = y"`, aws.ToString(api.listIn.Filter))
}

func TestIsUserInGroup(t *testing.T) {
	api := &fakeAPI{pages: []*cip.AdminListGroupsForUserOutput{
		{Groups: []types.GroupType{{GroupName: aws.String("users")}}, NextToken: aws.String("p2")},
		{Groups: []types.GroupType{{GroupName: aws.String("admin")}}},
	}}
	s := NewWithAPI(api, "pool-1", logging.Nop{})

	ok, err := s.IsUserInGroup(context.Background(), "bob", "admin")
	require.NoError(t, err)
	assert.True(t, ok)
	require.Len(t, api.groupIns, 2)
	assert.Equal(t, "p2", aws.ToString(api.groupIns[1].NextToken))

	api = &fakeAPI{pages: []*cip.AdminListGroupsForUserOutput{{Groups: nil}}}
	s = NewWithAPI(api, "pool-1", logging.Nop{})
	ok, err = s.IsUserInGroup(context.Background(), "bob", "admin")
	require.NoError(t, err)
	assert.False(t, ok)

	s = NewWithAPI(&fakeAPI{groupErr: errors.New("boom")}, "pool-1", logging.Nop{})
	_, err = s.IsUserInGroup(context.Background(), "bob", "admin")
	assert.ErrorIs(t, err, common.ErrorInternal)
}

func TestNotConfigured(t *testing.T) {
	s, err := New(context.Background(), Config{Region: "us-east-1"}, logging.Nop{})
	require.NoError(t, err)
	assert.False(t, s.Configured())

	_, err = s.GetUserBySub(context.Background(), "x")
	assert.ErrorIs(t, err, common.ErrConfiguration)
	_, err = s.IsUserInGroup(context.Background(), "x", "admin")
	assert.ErrorIs(t, err, common.ErrConfiguration)
}

func TestNew_UsesSeams(t *testing.T) {
	origLoad, origClient := loadDefaultAWSConfig, newClientFromConfig
	t.Cleanup(func() { loadDefaultAWSConfig, newClientFromConfig = origLoad, origClient })

	var gotOpts int
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		gotOpts = len(optFns)
		return aws.Config{Region: "eu-west-1"}, nil
	}
	api := &fakeAPI{listOut: &cip.ListUsersOutput{}}
	newClientFromConfig = func(cfg aws.Config, optFns ...func(*cip.Options)) API { return api }

	s, err := New(context.Background(), Config{
		Region: "eu-west-1", UserPoolID: "pool", AccessKeyID: "id", SecretAccessKey: "secret",
	}, logging.Nop{})
	require.NoError(t, err)
	assert.True(t, s.Configured())
	assert.Equal(t, 2, gotOpts)

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no creds")
	}
	_, err = New(context.Background(), Config{UserPoolID: "pool"}, logging.Nop{})
	assert.Error(t, err)
}
