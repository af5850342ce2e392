package domain

import "github.com/google/uuid"

// Actor 요청 주체 (감사 로그용)
//
// 호출자가 명시적으로 전달한다. 보안 컨텍스트 같은 전역 상태를
// 조회하지 않는다.
type Actor struct {
	Type   string
	UserID *uuid.UUID
}

// SystemActor 시스템 주체 (게이트웨이 콜백, 배치 등)
func SystemActor() Actor {
	return Actor{Type: "SYSTEM"}
}

// UserActor 사용자 주체
func UserActor(userID uuid.UUID) Actor {
	return Actor{Type: "USER", UserID: &userID}
}
