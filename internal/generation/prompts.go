package generation

import "strings"

const sourcePlaceholder = "{original_text}"

// correctionTemplate asks for OCR cleanup with mandatory markdown tables.
var correctionTemplate = `다음은 OCR로 추출된 텍스트입니다. 반드시 마크다운 표 형식을 사용하여 정리해주세요.

## 중요: 반드시 표를 생성하세요!
텍스트에서 정보를 추출하여 반드시 마크다운 표(| 컬럼1 | 컬럼2 | 형식)로 만드세요.

**기본 교정:**
1. OCR 오류 수정
2. 맞춤법 교정

**필수 표 변환 규칙:**

📋 **목표 및 전략:**
- 국내외 목표, 시장 전략, 마케팅 전략 등 → 표로 변환
- 예: | 구분 | 내용 | 비고 |

📊 **데이터 나열:**
- 이름, 나이, 직업, 연락처 등 개인정보 → 표로 변환
- 제품명, 가격, 수량, 날짜 등 → 표로 변환
- 항목명과 값이 쌍으로 나타나는 모든 경우 → 표로 변환

📅 **일정 및 계획:**
- 날짜, 시간, 내용, 장소 등 → 표로 변환
- 단계별 계획, 로드맵 등 → 표로 변환

💼 **비즈니스 정보:**
- 경쟁사 분석 → 표로 변환 (회사명, 특징, 장단점 등)
- 재무 정보 → 표로 변환 (항목, 금액, 기간 등)
- 조직 구조 → 표로 변환 (직책, 이름, 역할 등)

📈 **분석 및 비교:**
- 장단점 분석 → 표로 변환
- 비교 분석 → 표로 변환
- 통계 데이터 → 표로 변환

**STEP 3: 구조화**
- 제목이나 섹션: 마크다운 헤딩(#, ##, ###) 사용
- 나머지 목록: 불릿 포인트(- 또는 1. 2. 3.) 사용

**표 변환 강화 예시:**
` + "```" + `
원본: "국내외 목표 - 개인 고객에게 돌봄 인형 판매, 시장 - 고령화 지역 중심, 마케팅 전략 - SNS 채널 운영"

변환:
| 구분 | 내용 |
|------|------|
| 국내외 목표 | 개인 고객에게 돌봄 인형 판매 |
| 시장 | 고령화 지역 중심 |
| 마케팅 전략 | SNS 채널 운영 |
` + "```" + `

**⚠️ 중요 원칙:**
1. 모호한 경우에도 표로 만드는 것을 우선하세요
2. 2개 이상의 정보가 연관되어 있으면 표로 변환하세요
3. 원본 의미는 절대 변경하지 않습니다
4. 표가 부적절한 경우에만 원본 형태를 유지합니다

OCR 텍스트:
{original_text}

반드시 아래와 같은 마크다운 표 형식을 포함하여 작성하세요:

| 항목 | 설명 |
|------|------|
| 내용1 | 상세설명1 |
| 내용2 | 상세설명2 |

마크다운 형식의 정리된 텍스트:`

// studyNoteTemplate asks for a structured study note.
var studyNoteTemplate = `당신은 학습 노트를 자동으로 생성하는 AI 어시스턴트입니다.
다음 OCR 텍스트를 체계적이고 학습하기 좋은 노트로 변환해주세요.

## 작성 규칙:

### 1. 제목 생성
- 문서의 핵심 주제를 파악하여 명확한 제목을 작성하세요
- # 제목, ## 섹션, ### 소제목 형식 사용

### 2. 핵심 요약 (필수)
- 문서의 핵심을 3-5줄로 요약
- **굵은 글씨**로 중요 키워드 강조

### 3. 주요 내용 정리 (필수 - 표 형식)
모든 핵심 정보는 반드시 표로 정리하세요:

| 구분 | 내용 | 비고 |
|------|------|------|
| 핵심 개념 | 설명 | 추가 정보 |

### 4. 섹션별 정리
- 📌 **핵심 포인트**: 불릿 포인트로 정리
- 📊 **데이터/수치**: 표로 정리
- 🎯 **목표/전략**: 표로 정리
- ⚡ **액션 아이템**: 체크리스트로 정리

### 5. 학습 포인트
- 암기해야 할 내용
- 이해해야 할 개념
- 실습/적용 사항

### 6. 추가 메모
- 관련 자료나 참고 사항

---

OCR 원본 텍스트:
{original_text}

---

📝 **자동 생성된 학습 노트:**
`

// CorrectionPrompt builds the synchronous correction prompt for text.
func CorrectionPrompt(text string) string {
	return strings.Replace(correctionTemplate, sourcePlaceholder, text, 1)
}

// StudyNotePrompt builds the streaming study-note prompt for text.
func StudyNotePrompt(text string) string {
	return strings.Replace(studyNoteTemplate, sourcePlaceholder, text, 1)
}

// TutorSystemPrompt is the system instruction for the AI tutor.
const TutorSystemPrompt = `You are a kind and helpful learning assistant.
Please answer students' questions clearly and in an easy-to-understand manner.
Rather than simply giving answers, explain in a way that helps students understand on their own.
When necessary, provide examples and offer encouragement and support.`
