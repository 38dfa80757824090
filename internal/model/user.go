package model

type UserRole string

const (
	RoleAdmin       UserRole = "ADMIN"
	RoleRecruiter   UserRole = "RECRUITER"
	RoleInterviewer UserRole = "INTERVIEWER"
)

// swagger:model Company
type Company struct {
	BaseModel
	Name   string `gorm:"size:200;not null" json:"name"`
	Domain string `gorm:"size:200" json:"domain"`
}

func (Company) TableName() string {
	return "companies"
}

// swagger:model User
type User struct {
	BaseModel
	Name      string   `gorm:"size:100;not null" json:"name"`
	Email     string   `gorm:"size:100;uniqueIndex;not null" json:"email"`
	Password  string   `gorm:"size:100;not null" json:"-"`
	Role      UserRole `gorm:"size:20;default:'RECRUITER'" json:"role"`
	CompanyID *uint    `gorm:"index" json:"companyId"`
	Company   *Company `gorm:"foreignKey:CompanyID" json:"company,omitempty"`
	Disabled  bool     `gorm:"default:false" json:"disabled"`
}

func (User) TableName() string {
	return "users"
}
