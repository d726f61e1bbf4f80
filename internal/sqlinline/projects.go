package sqlinline

const QInsertProject = `--sql e7b0f526-d8a7-4c9d-99b9-db50c81c5a56
insert into projects (id, user_id, title, concept, genre, visual_style, aspect_ratio, default_voice_id, created_at, updated_at)
values ($1::uuid, $2::text, $3::text, $4::text, $5::text, $6::text, $7::text, $8::text, now(), now())
returning created_at, updated_at;
`

const QSelectProject = `--sql 1b8c41be-7fce-4176-9126-46e432ce96ad
select id::text, user_id, title, concept, genre, visual_style, aspect_ratio, default_voice_id, created_at, updated_at
from projects
where id = $1::uuid;
`

const QInsertStoryline = `--sql 5b9e6a6a-3ecf-485f-b06c-790f6b3e7f8c
insert into storylines (id, project_id, title, synopsis, content, is_selected, created_at)
values ($1::uuid, $2::uuid, $3::text, $4::text, $5::text, false, now())
returning created_at;
`

const storylineColumns = `id::text, project_id::text, title, synopsis, content, is_selected, created_at`

const QSelectStorylines = `--sql 3cf412f1-6d76-4df0-87ff-bf0b5c4f12a2
select ` + storylineColumns + `
from storylines
where project_id = $1::uuid
order by created_at asc;
`

const QSelectSelectedStoryline = `--sql 63660f9b-a794-486d-af7d-2145d85827a7
select ` + storylineColumns + `
from storylines
where project_id = $1::uuid and is_selected
limit 1;
`

const QClearSelectedStoryline = `--sql 96cc364b-d6bd-4862-9ba8-2c4d80e15400
update storylines
set is_selected = false
where project_id = $1::uuid and is_selected;
`

const QMarkSelectedStoryline = `--sql 5fdcc0cf-fb57-46d6-adeb-d226e97760ef
update storylines
set is_selected = true
where id = $1::uuid and project_id = $2::uuid;
`

const QDeleteProjectShots = `--sql 48b5ad6b-2402-4c83-8967-8667219e4c7a
delete from shots where project_id = $1::uuid;
`

const QDeleteProjectScenes = `--sql 4a560dd4-e0b0-4be6-a919-61b7c522e818
delete from scenes where project_id = $1::uuid;
`

const QDeleteProjectCharacters = `--sql 4966927a-6223-4453-bf33-d7a582bb52e0
delete from characters where project_id = $1::uuid;
`

const QInsertScene = `--sql b9085bc0-5ade-4986-881c-cdfab8653167
insert into scenes (id, project_id, storyline_id, position, title, description, location, mood, shot_ideas, created_at)
values ($1::uuid, $2::uuid, nullif($3::text, '')::uuid, $4::int, $5::text, $6::text, $7::text, $8::text, $9::jsonb, now());
`

const sceneColumns = `id::text, project_id::text, coalesce(storyline_id::text, ''), position, title, description, location, mood, shot_ideas, created_at`

const QSelectScenes = `--sql cd64856b-bbc4-4a5a-97bb-64725652e669
select ` + sceneColumns + `
from scenes
where project_id = $1::uuid
order by position asc;
`

const QSelectScene = `--sql 29bf840d-5a89-423b-a713-c5ef37e4bbc8
select ` + sceneColumns + `
from scenes
where id = $1::uuid;
`

// QLockScene serializes shot creation per scene.
const QLockScene = `--sql a497dc19-b907-4713-b3e7-9789a6e85b47
select id::text from scenes where id = $1::uuid for update;
`

const QInsertCharacter = `--sql b2c4bab9-d2c2-475c-9719-ff57d2bd3e8d
insert into characters (id, project_id, name, description, created_at)
values ($1::uuid, $2::uuid, $3::text, $4::text, now());
`

const characterColumns = `id::text, project_id::text, name, description, created_at`

const QSelectCharacters = `--sql 86b03ac2-6827-4d88-bd0d-3e553cbd80ad
select ` + characterColumns + `
from characters
where project_id = $1::uuid
order by created_at asc, name asc;
`

const QSelectCharacter = `--sql d6af842d-b4aa-46dc-b094-6495e91f1ddb
select ` + characterColumns + `
from characters
where id = $1::uuid;
`

const QCountSceneShots = `--sql 326b5591-e752-47df-ac67-74662affe79b
select count(*) from shots where scene_id = $1::uuid;
`

const QInsertShot = `--sql f7fa0ecc-01c9-42bb-97de-a3dca94581bb
insert into shots (id, project_id, scene_id, position, idea, shot_type, visual_prompt, dialogue, created_at, updated_at)
values ($1::uuid, $2::uuid, $3::uuid, $4::int, $5::text, '', '', '', now(), now());
`

const shotColumns = `s.id::text, s.project_id::text, s.scene_id::text, s.position, s.idea, s.shot_type, s.visual_prompt, s.dialogue, s.created_at, s.updated_at`

const QSelectProjectShots = `--sql 49ed3878-b908-4e15-8aa1-33df11ab3b8e
select ` + shotColumns + `
from shots s
join scenes sc on sc.id = s.scene_id
where s.project_id = $1::uuid
order by sc.position asc, s.position asc;
`

const QSelectSceneShots = `--sql e72e4e38-a4eb-4d48-8955-c47c46a96872
select ` + shotColumns + `
from shots s
where s.scene_id = $1::uuid
order by s.position asc;
`

const QSelectShot = `--sql 831cd7d8-2dec-434b-a9aa-6d5f883ffd6f
select ` + shotColumns + `
from shots s
where s.id = $1::uuid;
`

const QUpdateShotPrompt = `--sql 18d4ad88-6c6a-4cb6-9738-7f864751592c
update shots
set shot_type = $2::text,
    visual_prompt = $3::text,
    dialogue = $4::text,
    updated_at = now()
where id = $1::uuid;
`
