package repository

import (
	"crypto/rand"
	"math/big"
	"strconv"
	"time"

	"github.com/hitoshi/capacita/internal/model"
)

const idSuffixLen = 9

// NewRecordID はミリ秒タイムスタンプと9文字の base36 乱数を連結したIDを生成する。
// 既存データのIDと同じ形式で、生成順にほぼ単調増加する。
func NewRecordID(now time.Time) string {
	return strconv.FormatInt(now.UnixMilli(), 10) + randomBase36(idSuffixLen)
}

func randomBase36(n int) string {
	const alphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	base := big.NewInt(int64(len(alphabet)))
	b := make([]byte, n)
	for i := range b {
		v, err := rand.Int(rand.Reader, base)
		if err != nil {
			// crypto/rand の失敗は回復不能
			panic(err)
		}
		b[i] = alphabet[v.Int64()]
	}
	return string(b)
}

// IndexCourse はIDに一致するコースの位置を返す。見つからない場合は -1。
func IndexCourse(courses []model.Course, id string) int {
	for i := range courses {
		if courses[i].ID == id {
			return i
		}
	}
	return -1
}

// IndexUser はIDに一致するユーザーの位置を返す。見つからない場合は -1。
func IndexUser(users []model.User, id string) int {
	for i := range users {
		if users[i].ID == id {
			return i
		}
	}
	return -1
}

// IndexUserByEmail はメールアドレス（大文字小文字を区別しない）に一致するユーザーの位置を返す。
func IndexUserByEmail(users []model.User, email string) int {
	email = model.NormalizeEmail(email)
	for i := range users {
		if model.NormalizeEmail(users[i].Email) == email {
			return i
		}
	}
	return -1
}

// IndexStudent はIDに一致する求職者の位置を返す。
func IndexStudent(students []model.Student, id string) int {
	for i := range students {
		if students[i].ID == id {
			return i
		}
	}
	return -1
}

// IndexCompany はIDに一致する企業の位置を返す。
func IndexCompany(companies []model.Company, id string) int {
	for i := range companies {
		if companies[i].ID == id {
			return i
		}
	}
	return -1
}

// EmailTaken は excludeID 以外のレコードがメールアドレスを使用しているか判定する。
func EmailTaken(users []model.User, students []model.Student, companies []model.Company, email, excludeID string) bool {
	email = model.NormalizeEmail(email)
	for _, u := range users {
		if u.ID != excludeID && model.NormalizeEmail(u.Email) == email {
			return true
		}
	}
	for _, s := range students {
		if s.ID != excludeID && model.NormalizeEmail(s.Email) == email {
			return true
		}
	}
	for _, c := range companies {
		if c.ID != excludeID && model.NormalizeEmail(c.Email) == email {
			return true
		}
	}
	return false
}

// CNPJTaken は excludeID 以外の企業がCNPJを使用しているか判定する。
// 空のCNPJは重複とみなさない。
func CNPJTaken(companies []model.Company, cnpj, excludeID string) bool {
	cnpj = model.NormalizeCNPJ(cnpj)
	if cnpj == "" {
		return false
	}
	for _, c := range companies {
		if c.ID != excludeID && model.NormalizeCNPJ(c.CNPJ) == cnpj {
			return true
		}
	}
	return false
}

// UpsertStudent はIDが一致するレコードを置き換え、なければ末尾に追加する。
func UpsertStudent(students []model.Student, s model.Student) []model.Student {
	if i := IndexStudent(students, s.ID); i >= 0 {
		students[i] = s
		return students
	}
	return append(students, s)
}

// UpsertCompany はIDが一致するレコードを置き換え、なければ末尾に追加する。
func UpsertCompany(companies []model.Company, c model.Company) []model.Company {
	if i := IndexCompany(companies, c.ID); i >= 0 {
		companies[i] = c
		return companies
	}
	return append(companies, c)
}
