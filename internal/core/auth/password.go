package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/crypto/pbkdf2"
)

const DefaultCost = 12

var ErrPasswordInvalid = errors.New("password must be 1 to 72 bytes")

// PasswordHasher 新哈希一律 bcrypt；校验额外接受旧系统的 passlib pbkdf2-sha256
type PasswordHasher struct {
	cost int
}

// NewPasswordHasher cost<=0 时用 DefaultCost；测试用 bcrypt.MinCost 提速
func NewPasswordHasher(cost int) *PasswordHasher {
	if cost <= 0 {
		cost = DefaultCost
	}
	return &PasswordHasher{cost: cost}
}

func (p *PasswordHasher) Hash(pw string) (string, error) {
	// bcrypt 会静默截断 72 字节以后的内容，这里直接拒绝
	if pw == "" || len(pw) > 72 {
		return "", ErrPasswordInvalid
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pw), p.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify 格式不识别或损坏时返回 false
func (p *PasswordHasher) Verify(pw, hashed string) bool {
	switch {
	case isBcrypt(hashed):
		return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(pw)) == nil
	case strings.HasPrefix(hashed, pbkdf2Prefix):
		return verifyPBKDF2(pw, hashed)
	default:
		return false
	}
}

// NeedsRehash 非 bcrypt 或 cost 与当前配置不一致
func (p *PasswordHasher) NeedsRehash(hashed string) bool {
	if !isBcrypt(hashed) {
		return true
	}
	cost, err := bcrypt.Cost([]byte(hashed))
	return err != nil || cost != p.cost
}

func isBcrypt(h string) bool {
	return strings.HasPrefix(h, "$2a$") || strings.HasPrefix(h, "$2b$") || strings.HasPrefix(h, "$2y$")
}

// passlib 格式：$pbkdf2-sha256$<rounds>$<salt>$<checksum>，salt/checksum 为 adapted base64
const pbkdf2Prefix = "$pbkdf2-sha256$"

func verifyPBKDF2(pw, hashed string) bool {
	parts := strings.Split(strings.TrimPrefix(hashed, pbkdf2Prefix), "$")
	if len(parts) != 3 {
		return false
	}
	rounds, err := strconv.Atoi(parts[0])
	if err != nil || rounds <= 0 {
		return false
	}
	salt, err := ab64Decode(parts[1])
	if err != nil {
		return false
	}
	want, err := ab64Decode(parts[2])
	if err != nil || len(want) == 0 {
		return false
	}
	got := pbkdf2.Key([]byte(pw), salt, rounds, len(want), sha256.New)
	return subtle.ConstantTimeCompare(got, want) == 1
}

func ab64Decode(s string) ([]byte, error) {
	return base64.RawStdEncoding.DecodeString(strings.ReplaceAll(s, ".", "+"))
}

func ab64Encode(b []byte) string {
	return strings.ReplaceAll(base64.RawStdEncoding.EncodeToString(b), "+", ".")
}
