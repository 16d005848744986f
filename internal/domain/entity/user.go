package entity

const (
	RoleInvestor     = "investor"
	RoleEntrepreneur = "entrepreneur"
)

func IsValidRole(role string) bool {
	return role == RoleInvestor || role == RoleEntrepreneur
}

type User struct {
	ID       string `json:"id" bson:"id" firestore:"id"`
	Email    string `json:"email" bson:"email" firestore:"email"`
	Password string `json:"-" bson:"password" firestore:"password"`
	Role     string `json:"role" bson:"role" firestore:"role"`
	Name     string `json:"name" bson:"name" firestore:"name"`

	Bio                string            `json:"bio,omitempty" bson:"bio,omitempty" firestore:"bio,omitempty"`
	Interests          []string          `json:"interests" bson:"interests" firestore:"interests"`
	Portfolio          []string          `json:"portfolio" bson:"portfolio" firestore:"portfolio"`
	StartupName        string            `json:"startupName,omitempty" bson:"startupName,omitempty" firestore:"startupName,omitempty"`
	StartupDescription string            `json:"startupDescription,omitempty" bson:"startupDescription,omitempty" firestore:"startupDescription,omitempty"`
	FundingNeed        float64           `json:"fundingNeed,omitempty" bson:"fundingNeed,omitempty" firestore:"fundingNeed,omitempty"`
	PitchDeck          string            `json:"pitchDeck,omitempty" bson:"pitchDeck,omitempty" firestore:"pitchDeck,omitempty"`
	Avatar             string            `json:"avatar,omitempty" bson:"avatar,omitempty" firestore:"avatar,omitempty"`
	Location           string            `json:"location,omitempty" bson:"location,omitempty" firestore:"location,omitempty"`
	SocialLinks        map[string]string `json:"socialLinks,omitempty" bson:"socialLinks,omitempty" firestore:"socialLinks,omitempty"`
	Experience         string            `json:"experience,omitempty" bson:"experience,omitempty" firestore:"experience,omitempty"`
	Industry           string            `json:"industry,omitempty" bson:"industry,omitempty" firestore:"industry,omitempty"`
	Stage              string            `json:"stage,omitempty" bson:"stage,omitempty" firestore:"stage,omitempty"`
	Traction           string            `json:"traction,omitempty" bson:"traction,omitempty" firestore:"traction,omitempty"`
	TeamSize           int               `json:"teamSize,omitempty" bson:"teamSize,omitempty" firestore:"teamSize,omitempty"`
}

// UserSummary is the denormalised view attached to requests and
// collaborations. A zero value serialises as {}.
type UserSummary struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name,omitempty"`
	Role   string `json:"role,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

func (u *User) Summary() UserSummary {
	if u == nil {
		return UserSummary{}
	}
	return UserSummary{
		ID:     u.ID,
		Name:   u.Name,
		Role:   u.Role,
		Avatar: u.Avatar,
	}
}
