package sqlinline

const unitColumns = `id::text, parent_type, parent_id::text, project_id::text, coalesce(scene_id::text, ''),
    kind, status, coalesce(artifact_ref, ''), coalesce(failure_reason, ''), coalesce(content_fingerprint, ''),
    attempts, deadline_at, created_at, updated_at`

const QSelectUnit = `--sql f1a6ffde-aa5d-4084-ad90-81376ac1a70d
select ` + unitColumns + `
from generation_units
where id = $1::uuid;
`

const QSelectUnitByParent = `--sql 34d2b405-1938-444d-a662-3c9c59961919
select ` + unitColumns + `
from generation_units
where parent_id = $1::uuid and kind = $2::text;
`

const QSelectProjectUnits = `--sql cd378d15-7ca9-4bc6-9439-32193b2d632f
select ` + unitColumns + `
from generation_units
where project_id = $1::uuid
order by created_at asc, kind asc;
`

const QInsertUnit = `--sql ad86cf24-368c-457a-b6de-4a9a4c9c05c5
insert into generation_units (id, parent_type, parent_id, project_id, scene_id, kind, status, created_at, updated_at)
values ($1::uuid, $2::text, $3::uuid, $4::uuid, nullif($5::text, '')::uuid, $6::text, 'pending', now(), now());
`

// QEnsureUnit returns the existing row for (parent_id, kind) or inserts a pending one.
const QEnsureUnit = `--sql 5784f39a-2388-443c-a79b-38397caaa262
insert into generation_units (id, parent_type, parent_id, project_id, scene_id, kind, status, created_at, updated_at)
values ($1::uuid, $2::text, $3::uuid, $4::uuid, nullif($5::text, '')::uuid, $6::text, 'pending', now(), now())
on conflict (parent_id, kind) do update set updated_at = generation_units.updated_at
returning ` + unitColumns + `;
`

// QTransitionUnit is a compare-and-set on the current status.
const QTransitionUnit = `--sql e8f8467b-86df-4b26-bd18-80c7f2a154f7
update generation_units
set status = $2::text,
    artifact_ref = case when $2::text = 'completed' then $3::text else null end,
    failure_reason = case when $2::text = 'failed' then $4::text else null end,
    content_fingerprint = coalesce(nullif($5::text, ''), content_fingerprint),
    deadline_at = case when $2::text = 'generating' then $6::timestamptz else null end,
    attempts = attempts + case when $2::text = 'generating' then 1 else 0 end,
    updated_at = now()
where id = $1::uuid
  and status = any($7::text[])
returning ` + unitColumns + `;
`

const QExpireGeneratingUnits = `--sql 7929af11-736e-4d0c-b23c-12c8a78ca08f
update generation_units
set status = 'failed',
    failure_reason = $2::text,
    artifact_ref = null,
    deadline_at = null,
    updated_at = now()
where status = 'generating'
  and deadline_at < $1::timestamptz
returning ` + unitColumns + `;
`

const QDeleteBreakdownUnits = `--sql c7cdff7e-c001-4455-a4c2-472a76add393
delete from generation_units
where project_id = $1::uuid
  and kind = any($2::text[]);
`
